//go:build !llama

package native

// nativeBuilt indicates this binary was compiled with real llama support.
var nativeBuilt = false

// Detect reports no on-device runtime for builds without the llama tag.
// Every solve on such a host takes the fallback path.
func Detect(ctxSize, threads int) (Runtime, bool) {
	return nil, false
}
