package proc

import (
	"github.com/tidwall/gjson"
)

// parseCimProcesses accepts ConvertTo-Json output, which is a bare object for
// a single result and an array otherwise.
func parseCimProcesses(out []byte, self int) []RawProcess {
	res := gjson.ParseBytes(out)
	var items []gjson.Result
	if res.IsArray() {
		items = res.Array()
	} else if res.IsObject() {
		items = []gjson.Result{res}
	}

	procs := make([]RawProcess, 0, len(items))
	for _, it := range items {
		pid := int(it.Get("ProcessId").Int())
		line := it.Get("CommandLine").String()
		if pid <= 0 || pid == self || line == "" {
			continue
		}
		procs = append(procs, RawProcess{
			PID:   pid,
			Exe:   it.Get("ExecutablePath").String(),
			Args:  SplitCommandLine(line),
			Split: true,
		})
	}
	return procs
}
