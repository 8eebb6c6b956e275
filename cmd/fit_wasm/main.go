//go:build js && wasm

package main

import (
	"syscall/js"
	"time"

	"github.com/lucasjlepore/fitcodec/repair"
)

func main() {
	js.Global().Set("fixFit", js.FuncOf(fixFit))
	select {}
}

// fixFit(fileBytes Uint8Array, options object) repairs a FIT file in the
// browser. Option keys follow the fix-fit flags in snake case.
func fixFit(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("fit file bytes are required")
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return failure("failed to read FIT bytes from JS input")
	}

	opts, err := options(optsArg)
	if err != nil {
		return failure(err.Error())
	}
	result, err := repair.Fix(fileBytes, opts)
	if err != nil {
		return failure(err.Error())
	}

	payload := js.Global().Get("Uint8Array").New(len(result.Data))
	js.CopyBytesToJS(payload, result.Data)
	return map[string]any{
		"ok":            true,
		"data":          payload,
		"records":       result.Records,
		"slices":        repair.FormatSlices(result.Slices),
		"dropped_bytes": result.DroppedBytes,
		"delta_s":       result.Delta,
	}
}

func options(v js.Value) (repair.Options, error) {
	o := repair.DefaultOptions()
	o.AddHeader = getBool(v, "add_header")
	o.HeaderSize = int(getFloat(v, "header_size"))
	o.ProtocolVersion = int(getFloat(v, "protocol_version"))
	o.ProfileVersion = int(getFloat(v, "profile_version"))
	o.Drop = getBool(v, "drop")
	o.FixHeader = getBool(v, "fix_header")
	o.FixChecksum = getBool(v, "fix_checksum")
	o.Warn = getBool(v, "warn")
	if n := int(getFloat(v, "min_sync_cnt")); n > 0 {
		o.MinSyncCnt = n
	}
	if n := int(getFloat(v, "max_drop_cnt")); n > 0 {
		o.MaxDropCnt = n
	}
	if n := int(getFloat(v, "max_back_cnt")); n > 0 {
		o.MaxBackCnt = n
	}
	if n := int(getFloat(v, "max_fwd_len")); n > 0 {
		o.MaxFwdLen = n
	}
	if s := getString(v, "slices", ""); s != "" {
		slices, err := repair.ParseSlices(s)
		if err != nil {
			return o, err
		}
		o.Slices = slices
	}
	if s := getString(v, "start", ""); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return o, err
		}
		o.Start = &t
	}
	return o, nil
}

func failure(msg string) map[string]any {
	return map[string]any{
		"ok":    false,
		"error": msg,
	}
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func getBool(v js.Value, key string) bool {
	if v.IsUndefined() || v.IsNull() {
		return false
	}
	out := v.Get(key)
	return out.Type() == js.TypeBoolean && out.Bool()
}
