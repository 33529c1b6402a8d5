package bip32util

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/pkg/errors"
)

var (
	// ErrKeyIsPrivate is returned when a device hands
	// back a private extended key where an xpub was expected.
	ErrKeyIsPrivate = errors.New("extended key is private, expected a public key")

	// ErrKeyNetworkMismatch is returned when the key version
	// bytes belong to another network.
	ErrKeyNetworkMismatch = errors.New("extended key is for another network")

	// ErrKeyPathMismatch is produced when the depth or the
	// child number of the key don't match the requested path.
	ErrKeyPathMismatch = errors.New("key matched with wrong path, both should equal")
)

// Key captures an extended public key together with the
// derivation path it was requested for.
type Key struct {
	Key  *hdkeychain.ExtendedKey
	Path *Path
}

// ParseXpub decodes an extended public key returned by a device
// and checks it is consistent with the requested path: it must be
// public, serialized for params, and sit at the depth and child
// number that path describes.
func ParseXpub(xpub string, path *Path, params *chaincfg.Params) (*Key, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode extended key")
	}

	if key.IsPrivate() {
		return nil, ErrKeyIsPrivate
	}

	if !key.IsForNet(params) {
		return nil, ErrKeyNetworkMismatch
	}

	if int(key.Depth()) != path.Depth() {
		return nil, errors.Wrapf(ErrKeyPathMismatch, "key depth %d, path depth %d", key.Depth(), path.Depth())
	}

	childNum, err := childNumber(key)
	if err != nil {
		return nil, err
	}
	if childNum != path.Last().Sequence() {
		return nil, errors.Wrapf(ErrKeyPathMismatch, "key child number %d, path ends with %s", childNum, path.Last())
	}

	return &Key{
		Key:  key,
		Path: path,
	}, nil
}

// childNumber extracts the sequence field of the key, which
// hdkeychain doesn't expose. It does this by reading bytes
// of the serialized key.
func childNumber(k *hdkeychain.ExtendedKey) (uint32, error) {
	decoded, _, err := base58.CheckDecode(k.String())
	if err != nil {
		return 0, err
	}
	if len(decoded) < 12 {
		return 0, errors.New("extended key serialization too short")
	}

	return binary.BigEndian.Uint32(decoded[8:12]), nil
}

// Fingerprint returns the fingerprint of the key's parent,
// which is what signing devices report alongside an xpub.
func (k *Key) Fingerprint() uint32 {
	return k.Key.ParentFingerprint()
}

// String returns the base58 serialization of the key.
func (k *Key) String() string {
	return k.Key.String()
}

// FormatFingerprint renders a key fingerprint as eight
// lowercase hex digits.
func FormatFingerprint(fingerprint uint32) string {
	return fmt.Sprintf("%08x", fingerprint)
}
