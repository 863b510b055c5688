// Package tcp implements comm.Communicator for workers in separate processes.
//
// The group is a star: rank 0 is the hub and accepts one connection from each
// other rank. Every collective is a round trip: each spoke sends its
// contribution to the hub, the hub assembles the round and answers every spoke
// with the parts addressed to it.
//
//	// rank 0
//	ln, _ := net.Listen("tcp", ":7070")
//	c, err := tcp.Serve(ctx, ln, 4)
//
//	// ranks 1..3
//	c, err := tcp.Dial(ctx, "hub:7070", rank, 4, tcp.WithCompression(tcp.CompressionLZ4))
//
// # Wire format
//
// Each message is a frame with an 8-byte little-endian header:
//
//	kind u8 | flags u8 | root u16 | length u32 | payload
//
// flags marks a payload compressed with zstd or lz4. Compression is applied
// per frame once the payload reaches the configured threshold; a receiver
// decodes whatever the sender chose, so workers may use different settings.
//
// A failure on any worker aborts the group: the hub sends an abort frame to
// every spoke and all later collectives fail with comm.ErrGroupAborted.
package tcp
