package felt

// The execution engine addresses state with distinct felt types. They share
// the representation of Felt and convert to it without copying.

type Address Felt

func (a *Address) String() string {
	return (*Felt)(a).String()
}

func (a *Address) UnmarshalJSON(data []byte) error {
	return (*Felt)(a).UnmarshalJSON(data)
}

func (a *Address) MarshalJSON() ([]byte, error) {
	return (*Felt)(a).MarshalJSON()
}

func (a *Address) Felt() *Felt {
	return (*Felt)(a)
}

type ClassHash Felt

func (h *ClassHash) String() string {
	return (*Felt)(h).String()
}

func (h *ClassHash) UnmarshalJSON(data []byte) error {
	return (*Felt)(h).UnmarshalJSON(data)
}

func (h *ClassHash) MarshalJSON() ([]byte, error) {
	return (*Felt)(h).MarshalJSON()
}

func (h *ClassHash) Felt() *Felt {
	return (*Felt)(h)
}

type CasmClassHash Felt

func (h *CasmClassHash) String() string {
	return (*Felt)(h).String()
}

func (h *CasmClassHash) UnmarshalJSON(data []byte) error {
	return (*Felt)(h).UnmarshalJSON(data)
}

func (h *CasmClassHash) MarshalJSON() ([]byte, error) {
	return (*Felt)(h).MarshalJSON()
}

func (h *CasmClassHash) Felt() *Felt {
	return (*Felt)(h)
}

type StorageKey Felt

func (k *StorageKey) String() string {
	return (*Felt)(k).String()
}

func (k *StorageKey) UnmarshalJSON(data []byte) error {
	return (*Felt)(k).UnmarshalJSON(data)
}

func (k *StorageKey) MarshalJSON() ([]byte, error) {
	return (*Felt)(k).MarshalJSON()
}

func (k *StorageKey) Felt() *Felt {
	return (*Felt)(k)
}
