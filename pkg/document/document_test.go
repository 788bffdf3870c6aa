package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrappedOpenCert = `{
  "version": "opencerts/v2.0",
  "data": {
    "name": "7d88bc1a-48bd-476e-b639-04a2317d4fb2:string:Certificate of Completion",
    "issuers": [
      {
        "name": "2a0dc0cb-ba1a-42f1-9c79-1ca747cbca8b:string:Example Institute",
        "documentStore": "e8b1b5b9-6b5e-47f0-9b57-2ad27f1f4e2f:string:0x8Fc57204c35fb9317D91285eF52D6b892EC08cD3",
        "identityProof": {
          "type": "1a3b8a9f-7f6e-4a0c-8c3d-5b2f1e9d0c4a:string:DNS-TXT",
          "location": "9b4c1d2e-3f4a-4b5c-8d6e-7f8a9b0c1d2e:string:example.com"
        }
      }
    ]
  },
  "signature": {
    "type": "SHA3MerkleProof",
    "targetHash": "85df2b4e905a82cf10c317df8f4b659b5cf38cc12bd5fbaffba5fc901ef0011b",
    "merkleRoot": "85DF2B4E905A82CF10C317DF8F4B659B5CF38CC12BD5FBAFFBA5FC901EF0011B",
    "proof": []
  }
}`

func TestParseStripsSalts(t *testing.T) {
	doc, err := Parse([]byte(wrappedOpenCert))
	require.NoError(t, err)

	assert.Equal(t, "Certificate of Completion", doc.Data.Name)
	require.Len(t, doc.Issuers(), 1)

	issuer := doc.Issuers()[0]
	assert.Equal(t, "Example Institute", issuer.Name)
	assert.Equal(t, "0x8Fc57204c35fb9317D91285eF52D6b892EC08cD3", issuer.StoreAddress())
	assert.True(t, issuer.UsesDNSTxt())
	assert.Equal(t, "example.com", issuer.IdentityProof.Location)
}

func TestMerkleRootIsNormalized(t *testing.T) {
	doc, err := Parse([]byte(wrappedOpenCert))
	require.NoError(t, err)
	assert.Equal(t, "0x85df2b4e905a82cf10c317df8f4b659b5cf38cc12bd5fbaffba5fc901ef0011b", doc.MerkleRoot())
}

func TestParseRejectsMissingMerkleRoot(t *testing.T) {
	_, err := Parse([]byte(`{"version":"healthcert/v1.0","data":{"issuers":[]},"signature":{}}`))
	require.Error(t, err)
}

func TestStoreAddressFallsBackToCertificateStore(t *testing.T) {
	issuer := Issuer{CertificateStore: "0xabc"}
	assert.Equal(t, "0xabc", issuer.StoreAddress())

	issuer.DocumentStore = "0xdef"
	assert.Equal(t, "0xdef", issuer.StoreAddress())
}

func TestUnsaltPassesPlainValuesThrough(t *testing.T) {
	assert.Equal(t, "https://example.com", unsalt("https://example.com"))
	assert.Equal(t, "plain", unsalt("plain"))
	assert.Equal(t, "value", unsalt("salt:string:value"))
}
