package enclave

// Document is an attestation document bound to the enclave's identity key.
// A verifier distinguishes a real hardware attestation from the dummy
// fallback by the Verified flag and by whether Certificate is non-empty.
type Document struct {
	PCRs        map[string]string `json:"pcrs"`
	Certificate string            `json:"certificate"`
	CABundle    []string          `json:"cabundle"`
	UserData    []byte            `json:"user_data"`
	PublicKey   []byte            `json:"public_key"`
	Verified    bool              `json:"verified"`
}

// AttestationProvider produces a Document binding userData and a DER public
// key to the current execution environment. A real implementation would
// call out to a hardware attestation facility (e.g. the Nitro Secure
// Module); none is wired here because no such SDK is available, so the
// dummy fallback below is what ships (see DESIGN.md's stdlib-exception
// entry for this component).
type AttestationProvider interface {
	Attest(userData []byte, publicKeyDER []byte) (*Document, error)
}

// pcrRegisterCount matches the PCR 0..7 range spec.md requires a document
// to cover.
const pcrRegisterCount = 8

// DummyProvider emits a clearly-marked non-attested document: empty
// certificate and CA bundle, all-zero PCRs, Verified=false. The public key
// it embeds is the real one, so a caller can still use it for ECIES even
// though hardware attestation was not performed.
type DummyProvider struct{}

// NewDummyProvider constructs the always-available fallback attestation
// provider.
func NewDummyProvider() *DummyProvider { return &DummyProvider{} }

func (DummyProvider) Attest(userData []byte, publicKeyDER []byte) (*Document, error) {
	pcrs := make(map[string]string, pcrRegisterCount)
	for i := 0; i < pcrRegisterCount; i++ {
		pcrs[pcrIndex(i)] = zeroPCR
	}
	return &Document{
		PCRs:        pcrs,
		Certificate: "",
		CABundle:    nil,
		UserData:    userData,
		PublicKey:   publicKeyDER,
		Verified:    false,
	}, nil
}

const zeroPCR = "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

func pcrIndex(i int) string {
	return [...]string{"0", "1", "2", "3", "4", "5", "6", "7"}[i]
}
