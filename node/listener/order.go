package listener

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"aitea-distribution/types"
)

// OrderPrefix starts every command on the sender control channel:
//
//	ORDER SEND_FILES <path1> <path2> ...
const OrderPrefix = "ORDER SEND_FILES"

// FileRequest is one file named by an order.
type FileRequest struct {
	Path string
	Type types.FileType
	Name string
}

// IsOrder reports whether text starts with OrderPrefix, well formed or not.
func IsOrder(text string) bool {
	return strings.HasPrefix(text, OrderPrefix)
}

// ParseOrder splits an order into its file requests. The file type comes
// from the extension of each path and the name from its base name.
func ParseOrder(text string) ([]FileRequest, error) {
	if !IsOrder(text) {
		return nil, types.Wrapf(types.ErrMalformedCommand, "missing %q prefix", OrderPrefix)
	}
	rest := text[len(OrderPrefix):]
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && !unicode.IsSpace(r) {
		return nil, types.Wrapf(types.ErrMalformedCommand, "unknown command %q", strings.Fields(text)[1])
	}
	paths := strings.Fields(rest)
	if len(paths) == 0 {
		return nil, types.Wrapf(types.ErrMalformedCommand, "no file to send")
	}

	reqs := make([]FileRequest, 0, len(paths))
	for _, p := range paths {
		ft := types.FileTypeFromPath(p)
		reqs = append(reqs, FileRequest{
			Path: p,
			Type: ft,
			Name: types.LogicalName(p, ft),
		})
	}
	return reqs, nil
}

// FormatOrder builds the order text for paths.
func FormatOrder(paths ...string) string {
	return OrderPrefix + " " + strings.Join(paths, " ")
}
