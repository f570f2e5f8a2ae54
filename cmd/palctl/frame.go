package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/danmuck/palctl/internal/protocol/compress"
	"github.com/danmuck/palctl/internal/protocol/frame"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/spf13/cobra"
)

var jsonCodec = sonic.ConfigStd

type frameView struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Size int    `json:"size"`
	Wire string `json:"wire"`
}

type packetView struct {
	Command string          `json:"command"`
	Headers []packet.Header `json:"headers"`
	Payload string          `json:"payload,omitempty"`
	Type    string          `json:"type,omitempty"`
	Mapped  any             `json:"mapped,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func frameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Encode or decode wire frames",
	}
	cmd.AddCommand(frameEncodeCmd(), frameDecodeCmd())
	return cmd
}

func frameEncodeCmd() *cobra.Command {
	var (
		headers []string
		payload string
		file    string
		deflate bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "encode COMMAND",
		Short: "Split a packet into wire frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPacket(args[0], headers, payload, file, deflate)
			if err != nil {
				return err
			}
			frames := frame.NewEncoder(nil).Frames(p)
			out := cmd.OutOrStdout()
			if !asJSON {
				for _, f := range frames {
					if f.Failed() {
						return fmt.Errorf("encode %s: frame failed", p.Command)
					}
					if _, err := out.Write(f.Data); err != nil {
						return err
					}
				}
				return nil
			}
			views := make([]frameView, 0, len(frames))
			for _, f := range frames {
				views = append(views, frameView{ID: f.ID, Kind: string(f.Kind), Size: len(f.Data), Wire: string(f.Data)})
			}
			return writeJSON(out, views)
		},
	}
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "header as KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "payload text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the payload from a file")
	cmd.Flags().BoolVar(&deflate, "compress", false, "zlib-compress the payload and set COMPRESSION")
	cmd.Flags().BoolVar(&asJSON, "json", false, "describe frames as JSON instead of raw bytes")
	return cmd
}

func buildPacket(command string, headers []string, payload, file string, compressed bool) (*packet.Packet, error) {
	p := packet.New(strings.ToUpper(strings.TrimSpace(command)))
	for _, h := range headers {
		key, value, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("header %q: want KEY=VALUE", h)
		}
		p.Set(strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value))
	}
	body := []byte(payload)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		body = data
	}
	if compressed && len(body) > 0 {
		deflated, err := compress.Compress(body)
		if err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		body = deflated
		p.Set(packet.HeaderCompression, "1")
	}
	p.Payload = body
	return p, nil
}

func frameDecodeCmd() *cobra.Command {
	var reassemble bool
	cmd := &cobra.Command{
		Use:   "decode [FILE]",
		Short: "Decode raw wire bytes from FILE or stdin into packets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			raw, err := io.ReadAll(src)
			if err != nil {
				return err
			}
			views, err := decodeFrames(raw, reassemble)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().BoolVar(&reassemble, "reassemble", true, "join fragmented packets")
	return cmd
}

func decodeFrames(raw []byte, reassemble bool) ([]packetView, error) {
	decoded, err := frame.NewDecoder(frame.DefaultLimits()).Feed(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var r *frame.Reassembler
	if reassemble {
		r = frame.NewReassembler(frame.DefaultLimits())
	}
	registry := packets.NewRegistry()
	inflate := compress.Zlib{MaxSize: 8 << 20}

	views := make([]packetView, 0, len(decoded))
	for _, p := range decoded {
		if r != nil {
			whole, ok, err := r.Add(p)
			if err != nil {
				views = append(views, packetView{Command: p.Command, Headers: p.Headers, Error: err.Error()})
				continue
			}
			if !ok {
				continue
			}
			p = whole
		}
		view := packetView{Command: p.Command, Headers: p.Headers}
		if p.Compressed() {
			plain, err := inflate.Decompress(p.Payload)
			if err != nil {
				view.Error = err.Error()
				views = append(views, view)
				continue
			}
			p = p.Clone()
			p.Payload = plain
		}
		view.Payload = string(p.Payload)
		if pm, ok := registry.Map(p); ok {
			view.Type = fmt.Sprintf("%T", pm)
			view.Mapped = pm
		}
		views = append(views, view)
	}
	return views, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsonCodec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Write(data)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}
