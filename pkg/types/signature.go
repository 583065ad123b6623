package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SignatureLength is the size of an authority signature returned by
// ForeignBridge.signature: r (32) ++ s (32) ++ v (1).
const SignatureLength = 65

// Signature is one authority's approval of a withdrawal message. The
// components feed HomeBridge.withdraw(vs, rs, ss, message).
type Signature struct {
	V byte
	R common.Hash
	S common.Hash
}

func SignatureFromBytes(data []byte) (*Signature, error) {
	if len(data) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d, expected %d", len(data), SignatureLength)
	}
	return &Signature{
		R: common.BytesToHash(data[0:32]),
		S: common.BytesToHash(data[32:64]),
		V: data[64],
	}, nil
}

func (s *Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureLength)
	out = append(out, s.R.Bytes()...)
	out = append(out, s.S.Bytes()...)
	out = append(out, s.V)
	return out
}
