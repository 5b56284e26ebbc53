package felt

type Address Felt

func (a *Address) Bytes() [32]byte {
	return (*Felt)(a).Bytes()
}

func (a *Address) String() string {
	return (*Felt)(a).String()
}

func (a *Address) UnmarshalJSON(data []byte) error {
	return (*Felt)(a).UnmarshalJSON(data)
}

func (a Address) MarshalJSON() ([]byte, error) {
	return Felt(a).MarshalJSON()
}

// MarshalText lets addresses key JSON objects
func (a Address) MarshalText() ([]byte, error) {
	return Felt(a).MarshalText()
}

func (a *Address) UnmarshalText(text []byte) error {
	return (*Felt)(a).UnmarshalJSON(text)
}

func (a *Address) Marshal() []byte {
	return (*Felt)(a).Marshal()
}

func (a *Address) IsZero() bool {
	return (*Felt)(a).IsZero()
}

func (a *Address) Equal(b *Address) bool {
	return (*Felt)(a).Equal((*Felt)(b))
}

func (a *Address) Cmp(b *Address) int {
	return (*Felt)(a).Cmp((*Felt)(b))
}
