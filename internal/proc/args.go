package proc

import (
	"strings"
)

// ExtractFlagValue finds the value of flag in an argument vector. It accepts
// "--flag=value", "--flag value" and quoted values. When split is true the
// vector came from whitespace-splitting a command line string, so a value may
// span several tokens; those are joined until the next "-" token.
func ExtractFlagValue(args []string, flag string, split bool) (string, bool) {
	if flag == "" {
		return "", false
	}
	prefix := flag + "="
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if isQuoted(tok) {
			tok = tok[1 : len(tok)-1]
		}

		var parts []string
		switch {
		case tok == flag:
			if i+1 >= len(args) {
				return "", false
			}
			parts = []string{args[i+1]}
			i++
		case strings.HasPrefix(tok, prefix):
			parts = []string{strings.TrimPrefix(tok, prefix)}
		default:
			continue
		}

		if split {
			parts = append(parts, continuation(args[i+1:], parts[0])...)
		}
		value := unquote(strings.Join(parts, " "))
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}

// continuation returns the tokens that belong to a value split on whitespace.
// A fully quoted first token is complete; an opened quote runs to its closing
// token; a bare value runs to the next flag.
func continuation(rest []string, first string) []string {
	if isQuoted(first) {
		return nil
	}
	var out []string
	quote := openQuote(first)
	for _, tok := range rest {
		if quote != 0 {
			out = append(out, tok)
			if strings.HasSuffix(tok, string(quote)) {
				return out
			}
			continue
		}
		if strings.HasPrefix(tok, "-") {
			return out
		}
		out = append(out, tok)
	}
	return out
}

// openQuote reports the quote character s opens without closing.
func openQuote(s string) byte {
	if len(s) == 0 {
		return 0
	}
	q := s[0]
	if q != '"' && q != '\'' {
		return 0
	}
	if len(s) > 1 && s[len(s)-1] == q {
		return 0
	}
	return q
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return strings.Trim(s, `"'`)
}

// SplitCommandLine splits a Windows-style command line on unquoted
// whitespace. Quotes stay in the tokens so ExtractFlagValue can tell a quoted
// value from one that was split; backslashes are literal path separators.
func SplitCommandLine(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

// EnvValue returns the value of name from a KEY=VALUE environment block.
func EnvValue(env []string, name string) (string, bool) {
	prefix := name + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix), true
		}
	}
	return "", false
}

var helperMarkers = []string{"helper", "crashpad", "crash_handler", "crash-handler", "renderer", "gpu", "utility", "sandbox"}

// IsHelper reports whether a process is a renderer/GPU/utility child or a
// crash handler rather than the application's main process.
func IsHelper(exe string, args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "--type=") || a == "--type" {
			return true
		}
	}
	base := strings.ToLower(exe)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	for _, m := range helperMarkers {
		if strings.Contains(base, m) {
			return true
		}
	}
	return false
}
