package proc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// parseProcArgs2 decodes the darwin kern.procargs2 buffer:
//
//	int32 argc | exec_path \0 | \0 padding | argv[0..argc) \0-terminated | env \0-terminated ...
func parseProcArgs2(buf []byte) (exe string, args, env []string, err error) {
	if len(buf) < 4 {
		return "", nil, nil, fmt.Errorf("procargs2: short buffer (%d bytes)", len(buf))
	}
	argc := int(binary.LittleEndian.Uint32(buf[:4]))
	rest := buf[4:]

	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", nil, nil, fmt.Errorf("procargs2: unterminated exec path")
	}
	exe = string(rest[:end])
	rest = rest[end:]

	for len(rest) > 0 && rest[0] == 0 {
		rest = rest[1:]
	}

	for len(rest) > 0 {
		end = bytes.IndexByte(rest, 0)
		if end < 0 {
			end = len(rest)
		}
		s := string(rest[:end])
		if end < len(rest) {
			rest = rest[end+1:]
		} else {
			rest = nil
		}

		if len(args) < argc {
			args = append(args, s)
			continue
		}
		if s == "" {
			break
		}
		env = append(env, s)
	}
	return exe, args, env, nil
}

// splitNUL splits a /proc cmdline or environ buffer.
func splitNUL(b []byte) []string {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}
