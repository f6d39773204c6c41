package wire

import (
	"fmt"

	"github.com/renproject/surge"
)

// KeyAndAddress associates a public key with the Address at which it is
// believed to be reachable.
type KeyAndAddress struct {
	Key     string  `json:"key"`
	Address Address `json:"address"`
}

// SizeHint returns the number of bytes needed to represent this KeyAndAddress
// in binary.
func (keyAndAddr KeyAndAddress) SizeHint() int {
	return surge.SizeHint(keyAndAddr.Key) + keyAndAddr.Address.SizeHint()
}

// Marshal this KeyAndAddress into binary.
func (keyAndAddr KeyAndAddress) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Marshal(keyAndAddr.Key, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal key: %v", err)
	}
	buf, rem, err = keyAndAddr.Address.Marshal(buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal address: %v", err)
	}
	return buf, rem, err
}

// Unmarshal from binary into this KeyAndAddress.
func (keyAndAddr *KeyAndAddress) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Unmarshal(&keyAndAddr.Key, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal key: %v", err)
	}
	buf, rem, err = keyAndAddr.Address.Unmarshal(buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal address: %v", err)
	}
	return buf, rem, err
}
