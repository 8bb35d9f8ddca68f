package app

import "hookline/internal/engine/signing"

func signingInput() signing.CreateDocumentInput {
	return signing.CreateDocumentInput{
		Signers: []signing.SignerInput{
			{Role: "seller", Email: "seller@example.com", SigningOrder: 1},
			{Role: "purchaser", Email: "buyer@example.com", SigningOrder: 2},
		},
	}
}
