package codec

import (
	"aitea-distribution/types"

	"github.com/fxamacker/cbor/v2"
)

// The pkl file type carries generic object graphs encoded as CBOR, a
// self-describing binary format. Payloads are decoded only to be checked:
// decoding yields plain Go values and never runs code, so a payload from an
// untrusted writer can at worst be rejected. The bytes themselves travel and
// land unchanged.

var objectDecMode cbor.DecMode

func init() {
	var err error
	objectDecMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  128,
		MaxArrayElements: 1 << 26,
		MaxMapPairs:      1 << 24,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// checkObject accepts b when it holds exactly one well formed object graph
// within the decoder limits, and returns it as is.
func checkObject(kind error) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		var obj interface{}
		if err := objectDecMode.Unmarshal(b, &obj); err != nil {
			return nil, types.Wrap(kind, err)
		}
		return b, nil
	}
}
