package encoder

import (
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

var initialiseEncoder sync.Once

func initEncAndDecModes() {
	var err error
	// canonical mode sorts map keys and uses the shortest integer forms, so
	// equal values always encode to equal bytes
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 10485760, // Set to a reasonably high value, 10MiB
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal returns encoding of param v
func Marshal(v any) ([]byte, error) {
	initialiseEncoder.Do(initEncAndDecModes)
	return encMode.Marshal(v)
}

// Unmarshal decodes param v from []byte b
func Unmarshal(b []byte, v any) error {
	initialiseEncoder.Do(initEncAndDecModes)
	return decMode.Unmarshal(b, v)
}

type Encoder interface {
	Encode(v any) error
}

// NewEncoder returns a new encoder that writes to w
func NewEncoder(w io.Writer) Encoder {
	initialiseEncoder.Do(initEncAndDecModes)
	return encMode.NewEncoder(w)
}
