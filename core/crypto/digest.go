package crypto

import "github.com/NethermindEth/committer/core/felt"

type Digest interface {
	Update(...*felt.Felt) Digest
	Finish() *felt.Felt
}
