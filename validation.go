//go:build !distvec_release

package distvec

const defaultValidation = true
