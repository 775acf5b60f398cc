package types

import (
	"bytes"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
)

/*
   SGX/TDX Quote parser
   Based on:
   https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/c057b236790834cf7e547ebf90da91c53c7ed7f9/QuoteGeneration/quote_wrapper/common/inc/sgx_quote_3.h
   https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/c057b236790834cf7e547ebf90da91c53c7ed7f9/QuoteGeneration/quote_wrapper/common/inc/sgx_quote_4.h
   https://github.com/intel/SGXDataCenterAttestationPrimitives/blob/c057b236790834cf7e547ebf90da91c53c7ed7f9/QuoteGeneration/quote_wrapper/common/inc/sgx_quote_5.h
   https://github.com/intel/linux-sgx/blob/d5e10dfbd7381bcd47eb25d2dc1d2da4e9a91e70/common/inc/sgx_report2.h
*/

const (
	// TEETypeSGX is the type number referenced in the Quote header for SGX quotes.
	TEETypeSGX = 0x0

	// TEETypeTDX is the type number referenced in the Quote header for TDX quotes.
	TEETypeTDX = 0x81

	// QuoteVersion3 is the quote format for SGX ECDSA attestation.
	QuoteVersion3 = 3

	// QuoteVersion4 is the quote format for SGX and TDX 1.0 ECDSA attestation.
	QuoteVersion4 = 4

	// QuoteVersion5 is the quote format carrying a report body descriptor, adding TDX 1.5 support.
	QuoteVersion5 = 5

	// AttestationKeyECDSAP256 is the attestation key type for ECDSA-256 keys on the P-256 curve.
	// It is the only attestation key type supported by this package.
	AttestationKeyECDSAP256 = 2

	// PCK_ID_PCK_CERT_CHAIN is the CertificationData type holding the PCK cert chain (encoded in PEM, \0 byte terminated)
	PCK_ID_PCK_CERT_CHAIN = 5

	// PCK_ID_QE_REPORT_CERTIFICATION_DATA is the CertificationData type wrapping a QE report with its own certification data.
	PCK_ID_QE_REPORT_CERTIFICATION_DATA = 6

	// BODY_SGX_ENCLAVE_REPORT_TYPE is the quote v5 report body type for an SGX EnclaveReport.
	BODY_SGX_ENCLAVE_REPORT_TYPE = 1

	// BODY_TD_REPORT10_TYPE is the quote v5 report body type for a TDX 1.0 TDReport.
	BODY_TD_REPORT10_TYPE = 2

	// BODY_TD_REPORT15_TYPE is the quote v5 report body type for a TDX 1.5 TDReport.
	BODY_TD_REPORT15_TYPE = 3
)

// IntelQEVendorID is the QE vendor ID used by Intel's Quoting Enclave implementations.
var IntelQEVendorID = [16]byte{0x93, 0x9a, 0x72, 0x33, 0xf7, 0x9c, 0x4c, 0xa9, 0x94, 0x0a, 0x0d, 0xb3, 0x95, 0x7f, 0x06, 0x07}

// Errors returned by the quote parser. All of them mark the quote as unusable:
// there is no partial parse result.
var (
	// ErrTruncatedQuote is returned when the quote buffer ends before a declared or fixed-width field.
	ErrTruncatedQuote = errors.New("quote data is truncated")

	// ErrQuoteTooLarge is returned for quote buffers over 1 MiB.
	ErrQuoteTooLarge = errors.New("quote is too large")

	// ErrUnsupportedVersion is returned for quote versions other than 3, 4, and 5.
	ErrUnsupportedVersion = errors.New("unsupported quote version")

	// ErrUnsupportedTEEType is returned when the header TEE type is neither SGX nor TDX,
	// or not valid for the quote version.
	ErrUnsupportedTEEType = errors.New("unsupported TEE type")

	// ErrUnsupportedAttestationKeyType is returned for attestation keys other than ECDSA-P256.
	ErrUnsupportedAttestationKeyType = errors.New("unsupported attestation key type")

	// ErrUnsupportedCertificationData is returned when a certification data section has an unexpected type tag.
	ErrUnsupportedCertificationData = errors.New("unsupported certification data type")

	// ErrInvalidBodyDescriptor is returned when a quote v5 body descriptor is inconsistent with the quote.
	ErrInvalidBodyDescriptor = errors.New("invalid report body descriptor")

	// ErrMalformedCertificationData is returned when the PCK certificate chain in the quote is not
	// a NUL terminated sequence of PEM certificates.
	ErrMalformedCertificationData = errors.New("malformed certification data")

	// ErrTrailingData is returned when the quote buffer extends past the declared quote length.
	ErrTrailingData = errors.New("quote contains trailing data")
)

// QuoteHeader is the header of an SGX/TDX quote.
// For quote version 3 the TEE type field doubles as attestation key data and is always zero (SGX).
type QuoteHeader struct {
	Version            uint16
	AttestationKeyType uint16
	TEEType            uint32 // 0x0 = SGX, 0x81 = TDX
	QESVN              uint16
	PCESVN             uint16
	VendorID           [16]byte
	UserData           [20]byte
}

// ReportBody is the report body variant of a quote: EnclaveReport for SGX quotes,
// TDReport10 or TDReport15 for TDX quotes. Callers switch on the concrete type
// to access variant specific fields.
type ReportBody interface {
	isReportBody()
}

// EnclaveReport is the report of an SGX enclave. It doubles as the report of the
// Quoting Enclave (QE) embedded in the signature section of SGX and TDX quotes.
type EnclaveReport struct {
	CPUSVN     [16]byte
	MiscSelect uint32
	Reserved1  [28]byte
	Attributes [16]byte
	MRENCLAVE  [32]byte
	Reserved2  [32]byte
	MRSIGNER   [32]byte
	Reserved3  [96]byte
	ISVProdID  uint16
	ISVSVN     uint16
	Reserved4  [60]byte
	ReportData [64]byte
}

func (EnclaveReport) isReportBody() {}

// TDReport10 is a TDReport of a TDX 1.0 TD, originally passed into the quote for signing.
type TDReport10 struct {
	TCBSVN         [16]byte
	MRSEAM         [48]byte    // SHA384
	MRSIGNERSEAM   [48]byte    // SHA384
	SEAMAttributes uint64      // TEE Attributes: In C code that's a [2]uint32
	TDAttributes   uint64      // TEE Attributes: In C code that's a [2]uint32
	XFAM           uint64      // TEE Attributes: In C code that's a [2]uint32
	MRTD           [48]byte    // SHA384
	MRCONFIG       [48]byte    // SHA384
	MROWNER        [48]byte    // SHA384
	MROWNERCONFIG  [48]byte    // SHA384
	RTMR           [4][48]byte // 4x SHA384 - runtime measurements
	ReportData     [64]byte    // Likely UserData from the original TDREPORT
}

func (TDReport10) isReportBody() {}

// TDReport15 is a TDReport of a TDX 1.5 TD. It extends the TDX 1.0 report
// with the TCB SVNs of an L2 TD and the service TD measurement.
type TDReport15 struct {
	TDReport10
	TCBSVN2     [16]byte
	MRSERVICETD [48]byte // SHA384
}

// Quote is a parsed SGX/TDX attestation quote.
type Quote struct {
	Header          QuoteHeader
	Body            ReportBody
	SignatureLength uint32
	Signature       ECDSA256QuoteAuthData
}

// ECDSA256QuoteAuthData is the signature section of an SGX/TDX quote.
// Quote versions nest these fields differently on the wire; parsing normalizes
// them into this flat form.
type ECDSA256QuoteAuthData struct {
	Signature         [64]byte // ECDSA256 signature over header and report body, signed by PublicKey
	PublicKey         [64]byte // ECDSA256 attestation public key
	QEReport          EnclaveReport
	QEReportSignature [64]byte // ECDSA256 signature over QEReport, signed by the PCK
	QEAuthData        QEAuthData
	CertificationData CertificationData
}

// QEAuthData holds the Quoting Enclave (QE) authentication data.
type QEAuthData struct {
	ParsedDataSize uint16
	Data           []byte
}

// CertificationData is the certification data terminating the signature section.
// Only type 5 (PCK_ID_PCK_CERT_CHAIN) is supported: Data holds a PEM certificate
// chain terminated with a \0 byte, and Certificates holds the DER certificates
// split out of it, leaf first.
type CertificationData struct {
	Type           uint16
	ParsedDataSize uint32
	Data           []byte
	Certificates   [][]byte
}

const (
	quoteHeaderSize   = 48
	enclaveReportSize = 384
	tdReport10Size    = 584
	tdReport15Size    = 648
)

// ParseQuote parses an Intel SGX/TDX quote of version 3, 4, or 5.
// The expected input is the complete quote: any bytes past the declared
// signature section make the parse fail.
func ParseQuote(rawQuote []byte) (Quote, error) {
	quoteLength := len(rawQuote)
	if quoteLength < quoteHeaderSize {
		return Quote{}, fmt.Errorf("%w: quote structure is too short to be parsed (received: %d bytes)", ErrTruncatedQuote, quoteLength)
	}
	if quoteLength > 1048576 {
		return Quote{}, fmt.Errorf("%w (over 1 MiB, received: %d bytes)", ErrQuoteTooLarge, quoteLength)
	}

	quoteHeader := QuoteHeader{
		Version:            binary.LittleEndian.Uint16(rawQuote[0:2]),
		AttestationKeyType: binary.LittleEndian.Uint16(rawQuote[2:4]),
		TEEType:            binary.LittleEndian.Uint32(rawQuote[4:8]),
		QESVN:              binary.LittleEndian.Uint16(rawQuote[8:10]),
		PCESVN:             binary.LittleEndian.Uint16(rawQuote[10:12]),
		VendorID:           [16]byte(rawQuote[12:28]),
		UserData:           [20]byte(rawQuote[28:48]),
	}

	switch quoteHeader.Version {
	case QuoteVersion3, QuoteVersion4, QuoteVersion5:
	default:
		return Quote{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, quoteHeader.Version)
	}
	if quoteHeader.AttestationKeyType != AttestationKeyECDSAP256 {
		return Quote{}, fmt.Errorf("%w: %d (expected ECDSA-P256 (%d))", ErrUnsupportedAttestationKeyType, quoteHeader.AttestationKeyType, AttestationKeyECDSAP256)
	}

	body, bodyEnd, err := parseReportBody(rawQuote, quoteHeader)
	if err != nil {
		return Quote{}, err
	}

	if uint64(quoteLength) < uint64(bodyEnd)+4 {
		return Quote{}, fmt.Errorf("%w: quote ends before the signature length field (received: %d bytes)", ErrTruncatedQuote, quoteLength)
	}
	signatureLength := binary.LittleEndian.Uint32(rawQuote[bodyEnd : bodyEnd+4])
	signatureStart := bodyEnd + 4

	// Upgrade to uint64 so we can't overflow if SignatureLength is close to the top of uint32.
	endSignature := uint64(signatureStart) + uint64(signatureLength)
	if endSignature > uint64(quoteLength) {
		return Quote{}, fmt.Errorf("%w: quote SignatureLength is either incorrect or data is truncated (requires at least: %d bytes, left: %d bytes)", ErrTruncatedQuote, signatureLength, quoteLength-signatureStart)
	}
	if endSignature < uint64(quoteLength) {
		return Quote{}, fmt.Errorf("%w: %d bytes after the signature section", ErrTrailingData, uint64(quoteLength)-endSignature)
	}

	signature, err := parseSignature(rawQuote[signatureStart:endSignature], quoteHeader.Version)
	if err != nil {
		return Quote{}, fmt.Errorf("failed parsing quote signature: %w", err)
	}

	return Quote{
		Header:          quoteHeader,
		Body:            body,
		SignatureLength: signatureLength,
		Signature:       signature,
	}, nil
}

// parseReportBody parses the report body variant following the quote header.
// It returns the body and the offset of the first byte after it.
func parseReportBody(rawQuote []byte, header QuoteHeader) (ReportBody, int, error) {
	quoteLength := len(rawQuote)

	parseAt := func(offset, size int) ([]byte, error) {
		if quoteLength < offset+size {
			return nil, fmt.Errorf("%w: quote is too short for its report body (requires at least: %d bytes, received: %d bytes)", ErrTruncatedQuote, offset+size, quoteLength)
		}
		return rawQuote[offset : offset+size], nil
	}

	switch header.Version {
	case QuoteVersion3:
		if header.TEEType != TEETypeSGX {
			return nil, 0, fmt.Errorf("%w: %#x in a version 3 quote (expected SGX (%#x))", ErrUnsupportedTEEType, header.TEEType, TEETypeSGX)
		}
		report, err := parseAt(quoteHeaderSize, enclaveReportSize)
		if err != nil {
			return nil, 0, err
		}
		return parseEnclaveReport(report), quoteHeaderSize + enclaveReportSize, nil

	case QuoteVersion4:
		switch header.TEEType {
		case TEETypeSGX:
			report, err := parseAt(quoteHeaderSize, enclaveReportSize)
			if err != nil {
				return nil, 0, err
			}
			return parseEnclaveReport(report), quoteHeaderSize + enclaveReportSize, nil
		case TEETypeTDX:
			report, err := parseAt(quoteHeaderSize, tdReport10Size)
			if err != nil {
				return nil, 0, err
			}
			return parseTDReport10(report), quoteHeaderSize + tdReport10Size, nil
		default:
			return nil, 0, fmt.Errorf("%w: %#x (expected SGX (%#x) or TDX (%#x))", ErrUnsupportedTEEType, header.TEEType, TEETypeSGX, TEETypeTDX)
		}

	case QuoteVersion5:
		descriptor, err := parseAt(quoteHeaderSize, 6)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: quote is too short for a report body descriptor (received: %d bytes)", ErrTruncatedQuote, quoteLength)
		}
		bodyType := binary.LittleEndian.Uint16(descriptor[0:2])
		bodySize := binary.LittleEndian.Uint32(descriptor[2:6])
		bodyStart := quoteHeaderSize + 6

		var wantSize uint32
		var wantTEEType uint32
		switch bodyType {
		case BODY_SGX_ENCLAVE_REPORT_TYPE:
			wantSize, wantTEEType = enclaveReportSize, TEETypeSGX
		case BODY_TD_REPORT10_TYPE:
			wantSize, wantTEEType = tdReport10Size, TEETypeTDX
		case BODY_TD_REPORT15_TYPE:
			wantSize, wantTEEType = tdReport15Size, TEETypeTDX
		default:
			return nil, 0, fmt.Errorf("%w: unknown report body type %d", ErrInvalidBodyDescriptor, bodyType)
		}
		if bodySize != wantSize {
			return nil, 0, fmt.Errorf("%w: report body type %d declares %d bytes (expected: %d bytes)", ErrInvalidBodyDescriptor, bodyType, bodySize, wantSize)
		}
		if header.TEEType != wantTEEType {
			return nil, 0, fmt.Errorf("%w: report body type %d in a quote with TEE type %#x", ErrInvalidBodyDescriptor, bodyType, header.TEEType)
		}

		report, err := parseAt(bodyStart, int(bodySize))
		if err != nil {
			return nil, 0, err
		}
		switch bodyType {
		case BODY_SGX_ENCLAVE_REPORT_TYPE:
			return parseEnclaveReport(report), bodyStart + int(bodySize), nil
		case BODY_TD_REPORT10_TYPE:
			return parseTDReport10(report), bodyStart + int(bodySize), nil
		default:
			return parseTDReport15(report), bodyStart + int(bodySize), nil
		}

	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
}

// parseEnclaveReport parses an SGX EnclaveReport. The caller must pass exactly 384 bytes.
func parseEnclaveReport(report []byte) EnclaveReport {
	return EnclaveReport{
		CPUSVN:     [16]byte(report[0:16]),
		MiscSelect: binary.LittleEndian.Uint32(report[16:20]),
		Reserved1:  [28]byte(report[20:48]),
		Attributes: [16]byte(report[48:64]),
		MRENCLAVE:  [32]byte(report[64:96]),
		Reserved2:  [32]byte(report[96:128]),
		MRSIGNER:   [32]byte(report[128:160]),
		Reserved3:  [96]byte(report[160:256]),
		ISVProdID:  binary.LittleEndian.Uint16(report[256:258]),
		ISVSVN:     binary.LittleEndian.Uint16(report[258:260]),
		Reserved4:  [60]byte(report[260:320]),
		ReportData: [64]byte(report[320:384]),
	}
}

// parseTDReport10 parses a TDX 1.0 TDReport. The caller must pass exactly 584 bytes.
func parseTDReport10(report []byte) TDReport10 {
	return TDReport10{
		TCBSVN:         [16]byte(report[0:16]),
		MRSEAM:         [48]byte(report[16:64]),
		MRSIGNERSEAM:   [48]byte(report[64:112]),
		SEAMAttributes: binary.LittleEndian.Uint64(report[112:120]),
		TDAttributes:   binary.LittleEndian.Uint64(report[120:128]),
		XFAM:           binary.LittleEndian.Uint64(report[128:136]),
		MRTD:           [48]byte(report[136:184]),
		MRCONFIG:       [48]byte(report[184:232]),
		MROWNER:        [48]byte(report[232:280]),
		MROWNERCONFIG:  [48]byte(report[280:328]),
		RTMR:           [4][48]byte{[48]byte(report[328:376]), [48]byte(report[376:424]), [48]byte(report[424:472]), [48]byte(report[472:520])},
		ReportData:     [64]byte(report[520:584]),
	}
}

// parseTDReport15 parses a TDX 1.5 TDReport. The caller must pass exactly 648 bytes.
func parseTDReport15(report []byte) TDReport15 {
	return TDReport15{
		TDReport10:  parseTDReport10(report[0:584]),
		TCBSVN2:     [16]byte(report[584:600]),
		MRSERVICETD: [48]byte(report[600:648]),
	}
}

// parseSignature parses the signature section of a quote into its normalized form.
// Version 3 quotes lay the fields out flat; versions 4 and 5 wrap the QE report
// in an extra certification data envelope.
func parseSignature(signature []byte, version uint16) (ECDSA256QuoteAuthData, error) {
	switch version {
	case QuoteVersion3:
		return parseSignatureV3(signature)
	default:
		return parseSignatureV4(signature)
	}
}

// parseSignatureV3 parses the flat signature section of a version 3 quote.
func parseSignatureV3(signature []byte) (ECDSA256QuoteAuthData, error) {
	signatureLength := len(signature)
	if signatureLength < 128 {
		return ECDSA256QuoteAuthData{}, fmt.Errorf("%w: signature is too short to be parsed (received: %d bytes)", ErrTruncatedQuote, signatureLength)
	}

	quoteSignature := ECDSA256QuoteAuthData{
		Signature: [64]byte(signature[0:64]),   // ECDSA256 signature
		PublicKey: [64]byte(signature[64:128]), // ECDSA256 public key
	}

	qeReportCertData, err := parseQEReportCertificationData(signature[128:])
	if err != nil {
		return ECDSA256QuoteAuthData{}, err
	}
	quoteSignature.QEReport = qeReportCertData.EnclaveReport
	quoteSignature.QEReportSignature = qeReportCertData.Signature
	quoteSignature.QEAuthData = qeReportCertData.QEAuthData
	quoteSignature.CertificationData = qeReportCertData.CertificationData

	return quoteSignature, nil
}

// parseSignatureV4 parses the signature section of a version 4 or 5 quote.
func parseSignatureV4(signature []byte) (ECDSA256QuoteAuthData, error) {
	signatureLength := len(signature)
	if signatureLength < 134 {
		return ECDSA256QuoteAuthData{}, fmt.Errorf("%w: signature is too short to be parsed (received: %d bytes)", ErrTruncatedQuote, signatureLength)
	}

	quoteSignature := ECDSA256QuoteAuthData{
		Signature: [64]byte(signature[0:64]),   // ECDSA256 signature
		PublicKey: [64]byte(signature[64:128]), // ECDSA256 public key
	}

	certDataType := binary.LittleEndian.Uint16(signature[128:130])
	certDataSize := binary.LittleEndian.Uint32(signature[130:134])
	if certDataType != PCK_ID_QE_REPORT_CERTIFICATION_DATA {
		return ECDSA256QuoteAuthData{}, fmt.Errorf("%w: expected PCK_ID_QE_REPORT_CERTIFICATION_DATA (%d), got %d", ErrUnsupportedCertificationData, PCK_ID_QE_REPORT_CERTIFICATION_DATA, certDataType)
	}

	// Upgrade to uint64 since we could overflow if the declared size is close to the top of uint32.
	endQEReportCertData := 134 + uint64(certDataSize)
	if endQEReportCertData != uint64(signatureLength) {
		return ECDSA256QuoteAuthData{}, fmt.Errorf("%w: certification data size is either incorrect or data is truncated (declared: %d bytes, left: %d bytes)", ErrTruncatedQuote, certDataSize, signatureLength-134)
	}

	qeReportCertData, err := parseQEReportCertificationData(signature[134:endQEReportCertData])
	if err != nil {
		return ECDSA256QuoteAuthData{}, err
	}
	quoteSignature.QEReport = qeReportCertData.EnclaveReport
	quoteSignature.QEReportSignature = qeReportCertData.Signature
	quoteSignature.QEAuthData = qeReportCertData.QEAuthData
	quoteSignature.CertificationData = qeReportCertData.CertificationData

	return quoteSignature, nil
}

// qeReportCertificationData holds the QE report and the certification data
// shared by the tail of every supported signature section layout.
type qeReportCertificationData struct {
	EnclaveReport     EnclaveReport
	Signature         [64]byte // ECDSA256 signature
	QEAuthData        QEAuthData
	CertificationData CertificationData
}

// parseQEReportCertificationData parses a Quoting Enclave (QE) report followed by its
// signature, authentication data, and certification data.
func parseQEReportCertificationData(qeReportCertData []byte) (qeReportCertificationData, error) {
	qeReportCertDataLength := len(qeReportCertData)
	if qeReportCertDataLength < 450 {
		return qeReportCertificationData{}, fmt.Errorf("%w: QE report certification data is too short to be parsed (received: %d bytes)", ErrTruncatedQuote, qeReportCertDataLength)
	}

	qeReport := qeReportCertificationData{
		EnclaveReport: parseEnclaveReport(qeReportCertData[0:384]),
		Signature:     [64]byte(qeReportCertData[384:448]),
		QEAuthData: QEAuthData{
			ParsedDataSize: binary.LittleEndian.Uint16(qeReportCertData[448:450]),
		},
	}

	// Upgrade to uint32 since we could overflow if ParsedDataSize is close to the top of uint16.
	endQEAuthData := 450 + uint32(qeReport.QEAuthData.ParsedDataSize)
	if endQEAuthData > uint32(qeReportCertDataLength) {
		return qeReportCertificationData{}, fmt.Errorf("%w: QEAuthData.ParsedDataSize is either incorrect or data is truncated (requires at least: %d bytes, left: %d bytes)", ErrTruncatedQuote, qeReport.QEAuthData.ParsedDataSize, qeReportCertDataLength-450)
	}
	qeReport.QEAuthData.Data = qeReportCertData[450:endQEAuthData]

	certData, err := parseCertificationData(qeReportCertData[endQEAuthData:])
	if err != nil {
		return qeReportCertificationData{}, err
	}
	qeReport.CertificationData = certData

	return qeReport, nil
}

// parseCertificationData parses the certification data terminating a signature section
// and splits the contained PEM certificate chain.
func parseCertificationData(certData []byte) (CertificationData, error) {
	certDataLength := len(certData)
	if certDataLength <= 6 {
		return CertificationData{}, fmt.Errorf("%w: certification data is too short to be parsed (received: %d bytes)", ErrTruncatedQuote, certDataLength)
	}

	certificationData := CertificationData{
		Type:           binary.LittleEndian.Uint16(certData[0:2]),
		ParsedDataSize: binary.LittleEndian.Uint32(certData[2:6]),
	}

	if certificationData.Type != PCK_ID_PCK_CERT_CHAIN {
		return CertificationData{}, fmt.Errorf("%w: expected PCK_ID_PCK_CERT_CHAIN (%d), got %d", ErrUnsupportedCertificationData, PCK_ID_PCK_CERT_CHAIN, certificationData.Type)
	}

	// Upgrade to uint64 since we could overflow if ParsedDataSize is close to the top of uint32.
	endCertData := 6 + uint64(certificationData.ParsedDataSize)
	if endCertData != uint64(certDataLength) {
		return CertificationData{}, fmt.Errorf("%w: certification data size is either incorrect or data is truncated (declared: %d bytes, left: %d bytes)", ErrTruncatedQuote, certificationData.ParsedDataSize, certDataLength-6)
	}
	certificationData.Data = certData[6:endCertData]

	certificates, err := splitPEMCertificates(certificationData.Data)
	if err != nil {
		return CertificationData{}, err
	}
	certificationData.Certificates = certificates

	return certificationData, nil
}

// splitPEMCertificates splits a PEM certificate chain into the DER bytes of each
// certificate, leaf first. Any content besides PEM certificate blocks and a
// terminating NUL byte makes the split fail. The certificates themselves are not
// parsed at this stage.
func splitPEMCertificates(chain []byte) ([][]byte, error) {
	var certificates [][]byte
	rest := chain
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block of type %q in certificate chain", ErrMalformedCertificationData, block.Type)
		}
		certificates = append(certificates, block.Bytes)
	}
	if len(certificates) == 0 {
		return nil, fmt.Errorf("%w: no PEM certificates in certificate chain", ErrMalformedCertificationData)
	}
	if trailing := bytes.Trim(rest, "\x00\n\r\t "); len(trailing) != 0 {
		return nil, fmt.Errorf("%w: %d unexpected bytes after certificate chain", ErrMalformedCertificationData, len(trailing))
	}
	return certificates, nil
}
