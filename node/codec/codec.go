package codec

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"aitea-distribution/types"

	jsoniter "github.com/json-iterator/go"
)

// Codec is the serialize/deserialize pair and destination naming rule of one
// file type. Serialize turns the local file content into the transferred
// payload; Deserialize turns a payload back into the bytes written on disk.
type Codec struct {
	Type types.FileType

	Serialize   func(content []byte) ([]byte, error)
	Deserialize func(payload []byte) ([]byte, error)

	// DestName maps an announced name to the destination file name.
	DestName func(name string) string
}

// canonical JSON: compact, sorted keys, numbers kept verbatim.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

var table = map[types.FileType]Codec{
	types.FileTypeJSON: {
		Type:        types.FileTypeJSON,
		Serialize:   reencodeJSON(types.ErrSerializeFailed),
		Deserialize: reencodeJSON(types.ErrDeserializeFailed),
		DestName:    withExt(types.FileTypeJSON),
	},
	types.FileTypePkl: {
		Type:        types.FileTypePkl,
		Serialize:   checkObject(types.ErrSerializeFailed),
		Deserialize: checkObject(types.ErrDeserializeFailed),
		DestName:    withExt(types.FileTypePkl),
	},
	types.FileTypeTxt: {
		Type:        types.FileTypeTxt,
		Serialize:   checkText(types.ErrSerializeFailed),
		Deserialize: checkText(types.ErrDeserializeFailed),
		DestName:    withExt(types.FileTypeTxt),
	},
	types.FileTypeSo: {
		Type:        types.FileTypeSo,
		Serialize:   raw,
		Deserialize: raw,
		DestName:    SharedObjectName,
	},
	types.FileTypeBin: {
		Type:        types.FileTypeBin,
		Serialize:   raw,
		Deserialize: raw,
		DestName:    withExt(types.FileTypeBin),
	},
}

// Lookup returns the codec of ft.
func Lookup(ft types.FileType) (Codec, error) {
	c, ok := table[ft]
	if !ok {
		return Codec{}, types.Wrapf(types.ErrUnknownFileType, "no codec for %d", uint8(ft))
	}
	return c, nil
}

// SharedObjectName guarantees the ".so" suffix of a shared object name.
func SharedObjectName(name string) string {
	if strings.HasSuffix(name, ".so") {
		return name
	}
	return name + ".so"
}

func withExt(ft types.FileType) func(string) string {
	return func(name string) string {
		return name + "." + ft.String()
	}
}

func raw(b []byte) ([]byte, error) {
	return b, nil
}

func checkText(kind error) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		if !utf8.Valid(b) {
			return nil, types.Wrapf(kind, "content is not valid utf-8")
		}
		return b, nil
	}
}

func reencodeJSON(kind error) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		if !utf8.Valid(b) {
			return nil, types.Wrapf(kind, "json content is not valid utf-8")
		}
		var obj interface{}
		if err := jsonAPI.Unmarshal(b, &obj); err != nil {
			return nil, types.Wrap(kind, err)
		}
		if err := checkNumbers(obj); err != nil {
			return nil, types.Wrap(kind, err)
		}
		out, err := jsonAPI.Marshal(obj)
		if err != nil {
			return nil, types.Wrap(kind, err)
		}
		return out, nil
	}
}

// RFC 8259 number grammar. Numbers are decoded as their literal text, which
// the decoder does not check.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

func checkNumbers(v interface{}) error {
	switch v := v.(type) {
	case map[string]interface{}:
		for _, e := range v {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, e := range v {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	case nil, string, bool:
	default:
		if n := fmt.Sprint(v); !jsonNumber.MatchString(n) {
			return fmt.Errorf("invalid number %q", n)
		}
	}
	return nil
}
