/*
Package blobs provides synthetic SGX/TDX quotes and matching collateral for testing.

All data is generated once at package initialization from a throwaway CA hierarchy
shaped like Intel's: a root CA signing a PCK Platform CA and a TCB Signing
certificate, the Platform CA signing PCK certificates, and CRLs for both CAs.
The quotes are signed with a fresh attestation key bound to a QE report the way
real quotes are, so they verify end to end against the generated collateral.

Quote variants cover the happy path plus chains that are expired, revoked, or
carry an outdated platform TCB. [PCSIssueDate] is the verification time at which
the generated data is fresh.
*/
package blobs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"time"
)

// PCSIssueDate is the issue date of the generated collateral and certificates.
// Verification of the generated quotes succeeds at this time.
var PCSIssueDate = time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC)

// CollateralNextUpdate is the time after which the generated TCB Info and
// QE Identity count as stale.
var CollateralNextUpdate = PCSIssueDate.Add(30 * 24 * time.Hour)

// ReportDataText is embedded at the start of the report data of all generated quotes.
const ReportDataText = "Hello from Edgeless Systems!"

// FMSPC is the platform model identifier shared by the generated PCK certificates
// and TCB Info.
var FMSPC = [6]byte{0x00, 0x80, 0x6F, 0x05, 0x00, 0x00}

// PCEID is the PCE identifier shared by the generated PCK certificates and TCB Info.
var PCEID = [2]byte{0x00, 0x00}

// QEVendorID is Intel's QE vendor ID, carried in the headers of all generated quotes.
var QEVendorID = [16]byte{0x93, 0x9a, 0x72, 0x33, 0xf7, 0x9c, 0x4c, 0xa9, 0x94, 0x0a, 0x0d, 0xb3, 0x95, 0x7f, 0x06, 0x07}

// Generated PEM certificates and DER CRLs, assembled into chains below.
var (
	RootCACertPEM      []byte
	PlatformCACertPEM  []byte
	TCBSigningCertPEM  []byte
	PCKCertPEM         []byte
	RevokedPCKCertPEM  []byte
	ExpiredPCKCertPEM  []byte
	RootCACRL          []byte
	PCKCRL             []byte
	PCKCRLIssuerChain  string
	TCBInfoIssuerChain string
	// QEIdentityIssuerChain equals TCBInfoIssuerChain: Intel signs both with the TCB Signing key.
	QEIdentityIssuerChain string
)

// Collateral JSON in the PCS response envelope format, signed by the generated
// TCB Signing key.
var (
	TCBInfoJSON       []byte
	QEIdentityJSON    []byte
	SGXTCBInfoJSON    []byte
	SGXQEIdentityJSON []byte
)

// RootCACert returns the generated root CA certificate, the trust anchor for all
// generated quotes and collateral.
func RootCACert() *x509.Certificate {
	return rootCert
}

// TDXQuote returns a version 4 TDX quote that verifies as UpToDate.
func TDXQuote() []byte {
	return clone(tdxQuote)
}

// TDXQuoteV5 returns a version 5 TDX quote with a TD 1.5 report body that
// verifies as UpToDate.
func TDXQuoteV5() []byte {
	return clone(tdxQuoteV5)
}

// SGXQuote returns a version 3 SGX quote that verifies as UpToDate.
func SGXQuote() []byte {
	return clone(sgxQuote)
}

// SGXQuoteV4 returns a version 4 SGX quote that verifies as UpToDate.
func SGXQuoteV4() []byte {
	return clone(sgxQuoteV4)
}

// OutdatedTDXQuote returns a TDX quote whose PCK certificate reports TCB SVNs
// matching the OutOfDate level of the generated TCB Info.
func OutdatedTDXQuote() []byte {
	return clone(outdatedTDXQuote)
}

// RevokedTDXQuote returns a TDX quote whose PCK certificate is listed in the
// generated PCK CRL.
func RevokedTDXQuote() []byte {
	return clone(revokedTDXQuote)
}

// ExpiredTDXQuote returns a TDX quote whose PCK certificate expired before PCSIssueDate.
func ExpiredTDXQuote() []byte {
	return clone(expiredTDXQuote)
}

const (
	teeTypeSGX = 0x0
	teeTypeTDX = 0x81

	qeSVN  = 4
	pceSVN = 13

	upToDateSVN = 2
	outdatedSVN = 1
)

var (
	rootKey       *ecdsa.PrivateKey
	platformKey   *ecdsa.PrivateKey
	tcbSigningKey *ecdsa.PrivateKey
	pckKey        *ecdsa.PrivateKey
	attestKey     *ecdsa.PrivateKey

	rootCert     *x509.Certificate
	platformCert *x509.Certificate

	attestPublicKey []byte
	qeAuthData      []byte
	qeMRSIGNER      []byte

	tdxQuote         []byte
	tdxQuoteV5       []byte
	sgxQuote         []byte
	sgxQuoteV4       []byte
	outdatedTDXQuote []byte
	revokedTDXQuote  []byte
	expiredTDXQuote  []byte
)

func init() {
	rootKey = mustGenerateKey()
	platformKey = mustGenerateKey()
	tcbSigningKey = mustGenerateKey()
	pckKey = mustGenerateKey()
	attestKey = mustGenerateKey()

	attestPublicKey = make([]byte, 64)
	attestKey.PublicKey.X.FillBytes(attestPublicKey[:32])
	attestKey.PublicKey.Y.FillBytes(attestPublicKey[32:])

	qeAuthData = make([]byte, 32)
	for i := range qeAuthData {
		qeAuthData[i] = byte(i)
	}
	qeMRSIGNER = mustHex("dc9e2a7c6f948f17474e34a7fc43ed030f7c1563f1babddf6340c82e0e54a8c5")

	notBefore := time.Date(2018, 5, 21, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC)

	rootTemplate := newCertTemplate(1, "Intel SGX Root CA", notBefore, notAfter)
	rootTemplate.IsCA = true
	rootTemplate.BasicConstraintsValid = true
	rootTemplate.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	rootDER, root := mustCreateCert(rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	rootCert = root

	platformTemplate := newCertTemplate(2, "Intel SGX PCK Platform CA", notBefore, notAfter)
	platformTemplate.IsCA = true
	platformTemplate.BasicConstraintsValid = true
	platformTemplate.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	platformDER, platform := mustCreateCert(platformTemplate, rootCert, &platformKey.PublicKey, rootKey)
	platformCert = platform

	tcbSigningTemplate := newCertTemplate(3, "Intel SGX TCB Signing", notBefore, notAfter)
	tcbSigningTemplate.KeyUsage = x509.KeyUsageDigitalSignature
	tcbSigningDER, _ := mustCreateCert(tcbSigningTemplate, rootCert, &tcbSigningKey.PublicKey, rootKey)

	pckDER := createPCKCert(4, upToDateSVN, pceSVN, notBefore, notAfter)
	outdatedPCKDER := createPCKCert(5, outdatedSVN, 9, notBefore, notAfter)
	revokedPCKDER := createPCKCert(666, upToDateSVN, pceSVN, notBefore, notAfter)
	expiredPCKDER := createPCKCert(7, upToDateSVN, pceSVN,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	)

	RootCACertPEM = pemChain(rootDER)
	PlatformCACertPEM = pemChain(platformDER)
	TCBSigningCertPEM = pemChain(tcbSigningDER)
	PCKCertPEM = pemChain(pckDER)
	RevokedPCKCertPEM = pemChain(revokedPCKDER)
	ExpiredPCKCertPEM = pemChain(expiredPCKDER)
	PCKCRLIssuerChain = string(pemChain(platformDER, rootDER))
	TCBInfoIssuerChain = string(pemChain(tcbSigningDER, rootDER))
	QEIdentityIssuerChain = TCBInfoIssuerChain

	crlNextUpdate := time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC)
	RootCACRL = mustCreateCRL(&x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: PCSIssueDate,
		NextUpdate: crlNextUpdate,
	}, rootCert, rootKey)
	PCKCRL = mustCreateCRL(&x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: PCSIssueDate,
		NextUpdate: crlNextUpdate,
		RevokedCertificates: []pkix.RevokedCertificate{
			{SerialNumber: big.NewInt(666), RevocationTime: PCSIssueDate},
		},
	}, platformCert, platformKey)

	chain := pemChain(pckDER, platformDER, rootDER)
	outdatedChain := pemChain(outdatedPCKDER, platformDER, rootDER)
	revokedChain := pemChain(revokedPCKDER, platformDER, rootDER)
	expiredChain := pemChain(expiredPCKDER, platformDER, rootDER)

	tdxQuote = buildQuote(4, teeTypeTDX, 0, tdReport10(), chain, 2)
	tdxQuoteV5 = buildQuote(5, teeTypeTDX, 3, tdReport15(), chain, 2)
	sgxQuote = buildQuote(3, teeTypeSGX, 0, enclaveReport(), chain, 1)
	sgxQuoteV4 = buildQuote(4, teeTypeSGX, 0, enclaveReport(), chain, 1)
	outdatedTDXQuote = buildQuote(4, teeTypeTDX, 0, tdReport10(), outdatedChain, 2)
	revokedTDXQuote = buildQuote(4, teeTypeTDX, 0, tdReport10(), revokedChain, 2)
	expiredTDXQuote = buildQuote(4, teeTypeTDX, 0, tdReport10(), expiredChain, 2)

	TCBInfoJSON = signedEnvelope("tcbInfo", tcbInfoBody("TDX", true))
	QEIdentityJSON = signedEnvelope("enclaveIdentity", qeIdentityBody("TD_QE", 2))
	SGXTCBInfoJSON = signedEnvelope("tcbInfo", tcbInfoBody("SGX", false))
	SGXQEIdentityJSON = signedEnvelope("enclaveIdentity", qeIdentityBody("QE", 1))
}

// buildQuote assembles a raw quote: header, optional version 5 body descriptor,
// report body, and the signature section with the QE report and PCK chain.
func buildQuote(version uint16, teeType uint32, bodyType uint16, body, chainPEM []byte, qeProdID uint16) []byte {
	signed := make([]byte, 48)
	binary.LittleEndian.PutUint16(signed[0:2], version)
	binary.LittleEndian.PutUint16(signed[2:4], 2) // ECDSA-P256 attestation key
	binary.LittleEndian.PutUint32(signed[4:8], teeType)
	binary.LittleEndian.PutUint16(signed[8:10], qeSVN)
	binary.LittleEndian.PutUint16(signed[10:12], pceSVN)
	copy(signed[12:28], QEVendorID[:])

	if version == 5 {
		descriptor := make([]byte, 6)
		binary.LittleEndian.PutUint16(descriptor[0:2], bodyType)
		binary.LittleEndian.PutUint32(descriptor[2:6], uint32(len(body)))
		signed = append(signed, descriptor...)
	}
	signed = append(signed, body...)

	qeReport := qeReportBytes(qeProdID)
	tail := append([]byte{}, qeReport...)
	tail = append(tail, signECDSA(pckKey, qeReport)...)
	tail = binary.LittleEndian.AppendUint16(tail, uint16(len(qeAuthData)))
	tail = append(tail, qeAuthData...)
	tail = append(tail, certificationData(5, append(clone(chainPEM), 0x00))...)

	section := signECDSA(attestKey, signed)
	section = append(section, attestPublicKey...)
	if version == 3 {
		section = append(section, tail...)
	} else {
		section = append(section, certificationData(6, tail)...)
	}

	quote := binary.LittleEndian.AppendUint32(signed, uint32(len(section)))
	return append(quote, section...)
}

// qeReportBytes returns a QE report whose report data binds the attestation key
// and auth data, matching the generated QE Identity.
func qeReportBytes(isvProdID uint16) []byte {
	report := make([]byte, 384)
	copy(report[0:16], filled(16, upToDateSVN)) // CPUSVN
	report[48] = 0x11                           // attributes: INIT | MODE64BIT
	copy(report[64:96], filled(32, 0x99))       // MRENCLAVE
	copy(report[128:160], qeMRSIGNER)
	binary.LittleEndian.PutUint16(report[256:258], isvProdID)
	binary.LittleEndian.PutUint16(report[258:260], qeSVN)
	binding := sha256.Sum256(append(clone(attestPublicKey), qeAuthData...))
	copy(report[320:352], binding[:])
	return report
}

// tdReport10 returns a TD report for TDX 1.0 with TCB SVNs at the up to date level.
func tdReport10() []byte {
	body := make([]byte, 584)
	copy(body[0:16], filled(16, upToDateSVN)) // TEE TCB SVNs
	copy(body[16:64], filled(48, 0x2e))       // MRSEAM
	// MRSIGNERSEAM and SEAMATTRIBUTES stay zero, matching the TCB Info's TDX module
	copy(body[128:136], []byte{0xe7, 0x1a, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00}) // XFAM
	copy(body[136:184], filled(48, 0x54))                                       // MRTD
	copy(body[328:376], filled(48, 0x60))                                       // RTMR0
	copy(body[376:424], filled(48, 0x61))                                       // RTMR1
	copy(body[424:472], filled(48, 0x62))                                       // RTMR2
	copy(body[472:520], filled(48, 0x63))                                       // RTMR3
	copy(body[520:584], reportData())
	return body
}

// tdReport15 returns a TD report for TDX 1.5, extending the 1.0 report with the
// second set of TCB SVNs and the service TD measurement.
func tdReport15() []byte {
	body := append(tdReport10(), make([]byte, 64)...)
	copy(body[584:600], filled(16, upToDateSVN))
	copy(body[600:648], filled(48, 0x77)) // MRSERVICETD
	return body
}

// enclaveReport returns an SGX application enclave report.
func enclaveReport() []byte {
	report := make([]byte, 384)
	copy(report[0:16], filled(16, upToDateSVN)) // CPUSVN
	report[48] = 0x07                           // attributes: INIT | DEBUG | MODE64BIT
	copy(report[64:96], filled(32, 0xab))       // MRENCLAVE
	copy(report[128:160], filled(32, 0xcd))     // MRSIGNER
	binary.LittleEndian.PutUint16(report[256:258], 42) // ISVProdID
	binary.LittleEndian.PutUint16(report[258:260], 1)  // ISVSVN
	copy(report[320:384], reportData())
	return report
}

func reportData() []byte {
	data := make([]byte, 64)
	copy(data, ReportDataText)
	return data
}

func newCertTemplate(serialNumber int64, commonName string, notBefore, notAfter time.Time) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber: big.NewInt(serialNumber),
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"Intel Corporation"},
			Locality:     []string{"Santa Clara"},
			Province:     []string{"CA"},
			Country:      []string{"US"},
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,
	}
}

func createPCKCert(serialNumber int64, tcbSVN byte, pceSVN int, notBefore, notAfter time.Time) []byte {
	template := newCertTemplate(serialNumber, "Intel SGX PCK Certificate", notBefore, notAfter)
	template.KeyUsage = x509.KeyUsageDigitalSignature
	template.ExtraExtensions = []pkix.Extension{
		{Id: sgxExtensionOID, Value: pckExtension(tcbSVN, pceSVN)},
	}
	der, _ := mustCreateCert(template, platformCert, &pckKey.PublicKey, platformKey)
	return der
}

func mustGenerateKey() *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	return key
}

func mustCreateCert(template, parent *x509.Certificate, publicKey *ecdsa.PublicKey, signingKey *ecdsa.PrivateKey) ([]byte, *x509.Certificate) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, publicKey, signingKey)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	return der, cert
}

func mustCreateCRL(template *x509.RevocationList, issuer *x509.Certificate, signingKey *ecdsa.PrivateKey) []byte {
	der, err := x509.CreateRevocationList(rand.Reader, template, issuer, signingKey)
	if err != nil {
		panic(err)
	}
	return der
}

// signECDSA signs the SHA-256 digest of data and returns the signature as raw r and s.
func signECDSA(key *ecdsa.PrivateKey, data []byte) []byte {
	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		panic(err)
	}
	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return signature
}

// certificationData wraps data in a certification data envelope of the given type.
func certificationData(dataType uint16, data []byte) []byte {
	out := make([]byte, 6, 6+len(data))
	binary.LittleEndian.PutUint16(out[0:2], dataType)
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(data)))
	return append(out, data...)
}

func pemChain(derCerts ...[]byte) []byte {
	var out []byte
	for _, der := range derCerts {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}
	return out
}

func filled(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func mustHex(s string) []byte {
	out, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return out
}

// Collateral JSON construction. The envelope signature covers the exact bytes of
// the embedded body, so the body is marshaled once and passed around raw.

func signedEnvelope(field string, body []byte) []byte {
	signature := signECDSA(tcbSigningKey, body)
	envelope := map[string]json.RawMessage{
		field:       body,
		"signature": mustMarshalJSON(hex.EncodeToString(signature)),
	}
	return mustMarshalJSON(envelope)
}

func tcbInfoBody(id string, tdx bool) []byte {
	info := tcbInfoJSON{
		ID:                      id,
		Version:                 3,
		IssueDate:               PCSIssueDate.Format(time.RFC3339),
		NextUpdate:              CollateralNextUpdate.Format(time.RFC3339),
		FMSPC:                   hex.EncodeToString(FMSPC[:]),
		PCEID:                   hex.EncodeToString(PCEID[:]),
		TCBType:                 0,
		TCBEvaluationDataNumber: 15,
		TCBLevels: []tcbLevelJSON{
			{
				TCB:       platformTCB(upToDateSVN, pceSVN, tdx),
				TCBDate:   "2023-02-15T00:00:00Z",
				TCBStatus: "UpToDate",
			},
			{
				TCB:         platformTCB(outdatedSVN, 11, tdx),
				TCBDate:     "2022-08-10T00:00:00Z",
				TCBStatus:   "SWHardeningNeeded",
				AdvisoryIDs: []string{"INTEL-SA-00615"},
			},
			{
				TCB:         platformTCB(outdatedSVN, 9, tdx),
				TCBDate:     "2021-11-10T00:00:00Z",
				TCBStatus:   "OutOfDate",
				AdvisoryIDs: []string{"INTEL-SA-00586", "INTEL-SA-00615"},
			},
		},
	}
	if tdx {
		info.TDXModule = &tdxModuleJSON{
			MRSigner:       hex.EncodeToString(make([]byte, 48)),
			Attributes:     "0000000000000000",
			AttributesMask: "ffffffffffffffff",
		}
	}
	return mustMarshalJSON(info)
}

func qeIdentityBody(id string, isvProdID uint16) []byte {
	identity := qeIdentityJSON{
		ID:                      id,
		Version:                 2,
		IssueDate:               PCSIssueDate.Format(time.RFC3339),
		NextUpdate:              CollateralNextUpdate.Format(time.RFC3339),
		TCBEvaluationDataNumber: 15,
		MiscSelect:              "00000000",
		MiscSelectMask:          "ffffffff",
		Attributes:              "11000000000000000000000000000000",
		AttributesMask:          "fbffffffffffffff0000000000000000",
		MRSigner:                hex.EncodeToString(qeMRSIGNER),
		ISVProdID:               isvProdID,
		TCBLevels: []qeTCBLevelJSON{
			{
				TCB:       qeTCBJSON{ISVSVN: qeSVN},
				TCBDate:   "2023-02-15T00:00:00Z",
				TCBStatus: "UpToDate",
			},
			{
				TCB:         qeTCBJSON{ISVSVN: 2},
				TCBDate:     "2021-11-10T00:00:00Z",
				TCBStatus:   "OutOfDate",
				AdvisoryIDs: []string{"INTEL-SA-00202"},
			},
		},
	}
	return mustMarshalJSON(identity)
}

func platformTCB(svn uint8, pceSVN uint16, tdx bool) tcbJSON {
	tcb := tcbJSON{
		SGXComponents: components(svn),
		PCESVN:        pceSVN,
	}
	if tdx {
		tcb.TDXComponents = components(svn)
	}
	return tcb
}

func components(svn uint8) []tcbComponentJSON {
	out := make([]tcbComponentJSON, 16)
	for i := range out {
		out[i] = tcbComponentJSON{SVN: svn}
	}
	return out
}

func mustMarshalJSON(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}

type tcbInfoJSON struct {
	ID                      string         `json:"id"`
	Version                 uint32         `json:"version"`
	IssueDate               string         `json:"issueDate"`
	NextUpdate              string         `json:"nextUpdate"`
	FMSPC                   string         `json:"fmspc"`
	PCEID                   string         `json:"pceid"`
	TCBType                 int            `json:"tcbType"`
	TCBEvaluationDataNumber uint32         `json:"tcbEvaluationDataNumber"`
	TDXModule               *tdxModuleJSON `json:"tdxModule,omitempty"`
	TCBLevels               []tcbLevelJSON `json:"tcbLevels"`
}

type tdxModuleJSON struct {
	MRSigner       string `json:"mrSigner"`
	Attributes     string `json:"attributes"`
	AttributesMask string `json:"attributesMask"`
}

type tcbLevelJSON struct {
	TCB         tcbJSON  `json:"tcb"`
	TCBDate     string   `json:"tcbDate"`
	TCBStatus   string   `json:"tcbStatus"`
	AdvisoryIDs []string `json:"advisoryIDs,omitempty"`
}

type tcbJSON struct {
	SGXComponents []tcbComponentJSON `json:"sgxtcbcomponents"`
	TDXComponents []tcbComponentJSON `json:"tdxtcbcomponents,omitempty"`
	PCESVN        uint16             `json:"pcesvn"`
}

type tcbComponentJSON struct {
	SVN uint8 `json:"svn"`
}

type qeIdentityJSON struct {
	ID                      string           `json:"id"`
	Version                 uint32           `json:"version"`
	IssueDate               string           `json:"issueDate"`
	NextUpdate              string           `json:"nextUpdate"`
	TCBEvaluationDataNumber uint32           `json:"tcbEvaluationDataNumber"`
	MiscSelect              string           `json:"miscselect"`
	MiscSelectMask          string           `json:"miscselectMask"`
	Attributes              string           `json:"attributes"`
	AttributesMask          string           `json:"attributesMask"`
	MRSigner                string           `json:"mrSigner"`
	ISVProdID               uint16           `json:"isvprodid"`
	TCBLevels               []qeTCBLevelJSON `json:"tcbLevels"`
}

type qeTCBLevelJSON struct {
	TCB         qeTCBJSON `json:"tcb"`
	TCBDate     string    `json:"tcbDate"`
	TCBStatus   string    `json:"tcbStatus"`
	AdvisoryIDs []string  `json:"advisoryIDs,omitempty"`
}

type qeTCBJSON struct {
	ISVSVN uint16 `json:"isvsvn"`
}

// PCK certificate SGX extension construction. The ASN.1 structure is a sequence
// of OID/value pairs, nested for the TCB and configuration entries.

var sgxExtensionOID = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1}

func sgxOID(sub ...int) asn1.ObjectIdentifier {
	return append(append(asn1.ObjectIdentifier{}, sgxExtensionOID...), sub...)
}

func pckExtension(tcbSVN byte, pceSVN int) []byte {
	svn := int(tcbSVN)
	ext := asn1SGXExtensions{
		PPID: asn1OctetString{Oid: sgxOID(1), Value: filled(16, 0xaa)},
		TCB: asn1TCB{
			TCBOid: sgxOID(2),
			TCBInfo: asn1TCBInfo{
				Comp01SVN: asn1Integer{Oid: sgxOID(2, 1), Value: svn},
				Comp02SVN: asn1Integer{Oid: sgxOID(2, 2), Value: svn},
				Comp03SVN: asn1Integer{Oid: sgxOID(2, 3), Value: svn},
				Comp04SVN: asn1Integer{Oid: sgxOID(2, 4), Value: svn},
				Comp05SVN: asn1Integer{Oid: sgxOID(2, 5), Value: svn},
				Comp06SVN: asn1Integer{Oid: sgxOID(2, 6), Value: svn},
				Comp07SVN: asn1Integer{Oid: sgxOID(2, 7), Value: svn},
				Comp08SVN: asn1Integer{Oid: sgxOID(2, 8), Value: svn},
				Comp09SVN: asn1Integer{Oid: sgxOID(2, 9), Value: svn},
				Comp10SVN: asn1Integer{Oid: sgxOID(2, 10), Value: svn},
				Comp11SVN: asn1Integer{Oid: sgxOID(2, 11), Value: svn},
				Comp12SVN: asn1Integer{Oid: sgxOID(2, 12), Value: svn},
				Comp13SVN: asn1Integer{Oid: sgxOID(2, 13), Value: svn},
				Comp14SVN: asn1Integer{Oid: sgxOID(2, 14), Value: svn},
				Comp15SVN: asn1Integer{Oid: sgxOID(2, 15), Value: svn},
				Comp16SVN: asn1Integer{Oid: sgxOID(2, 16), Value: svn},
				PCESVN:    asn1Integer{Oid: sgxOID(2, 17), Value: pceSVN},
				CPUSVN:    asn1OctetString{Oid: sgxOID(2, 18), Value: filled(16, tcbSVN)},
			},
		},
		PCEID:              asn1OctetString{Oid: sgxOID(3), Value: PCEID[:]},
		FMSPC:              asn1OctetString{Oid: sgxOID(4), Value: FMSPC[:]},
		SGXType:            asn1Enumerated{Oid: sgxOID(5), Value: 0},
		PlatformInstanceID: asn1OctetString{Oid: sgxOID(6), Value: filled(16, 0xbb)},
		Configuration: asn1Configuration{
			ConfigurationOid: sgxOID(7),
			Configuration: asn1ConfigurationOptions{
				DynamicPlatform: asn1Boolean{Oid: sgxOID(7, 1), Value: true},
				CachedKeys:      asn1Boolean{Oid: sgxOID(7, 2), Value: true},
				SMTEnabled:      asn1Boolean{Oid: sgxOID(7, 3), Value: true},
			},
		},
	}

	der, err := asn1.Marshal(ext)
	if err != nil {
		panic(err)
	}
	return der
}

type asn1SGXExtensions struct {
	PPID               asn1OctetString
	TCB                asn1TCB
	PCEID              asn1OctetString
	FMSPC              asn1OctetString
	SGXType            asn1Enumerated
	PlatformInstanceID asn1OctetString
	Configuration      asn1Configuration
}

type asn1TCB struct {
	TCBOid  asn1.ObjectIdentifier
	TCBInfo asn1TCBInfo
}

type asn1TCBInfo struct {
	Comp01SVN asn1Integer
	Comp02SVN asn1Integer
	Comp03SVN asn1Integer
	Comp04SVN asn1Integer
	Comp05SVN asn1Integer
	Comp06SVN asn1Integer
	Comp07SVN asn1Integer
	Comp08SVN asn1Integer
	Comp09SVN asn1Integer
	Comp10SVN asn1Integer
	Comp11SVN asn1Integer
	Comp12SVN asn1Integer
	Comp13SVN asn1Integer
	Comp14SVN asn1Integer
	Comp15SVN asn1Integer
	Comp16SVN asn1Integer
	PCESVN    asn1Integer
	CPUSVN    asn1OctetString
}

type asn1Configuration struct {
	ConfigurationOid asn1.ObjectIdentifier
	Configuration    asn1ConfigurationOptions
}

type asn1ConfigurationOptions struct {
	DynamicPlatform asn1Boolean
	CachedKeys      asn1Boolean
	SMTEnabled      asn1Boolean
}

type asn1OctetString struct {
	Oid   asn1.ObjectIdentifier
	Value []byte
}

type asn1Integer struct {
	Oid   asn1.ObjectIdentifier
	Value int
}

type asn1Boolean struct {
	Oid   asn1.ObjectIdentifier
	Value bool
}

type asn1Enumerated struct {
	Oid   asn1.ObjectIdentifier
	Value asn1.Enumerated
}
