package types

import (
	"encoding/binary"
	"fmt"
)

// Marshal serializes an EnclaveReport to its binary representation found in a Quote Enclave (QE) report or quote.
func (er *EnclaveReport) Marshal() [384]byte {
	miscSelect := make([]byte, 4)
	isvProdID := make([]byte, 2)
	isvSVN := make([]byte, 2)
	binary.LittleEndian.PutUint32(miscSelect, er.MiscSelect)
	binary.LittleEndian.PutUint16(isvProdID, er.ISVProdID)
	binary.LittleEndian.PutUint16(isvSVN, er.ISVSVN)

	var result [384]byte
	copy(result[0:16], er.CPUSVN[:])
	copy(result[16:20], miscSelect)
	copy(result[20:48], er.Reserved1[:])
	copy(result[48:64], er.Attributes[:])
	copy(result[64:96], er.MRENCLAVE[:])
	copy(result[96:128], er.Reserved2[:])
	copy(result[128:160], er.MRSIGNER[:])
	copy(result[160:256], er.Reserved3[:])
	copy(result[256:258], isvProdID)
	copy(result[258:260], isvSVN)
	copy(result[260:320], er.Reserved4[:])
	copy(result[320:384], er.ReportData[:])

	return result
}

// Marshal serializes a quote header (QuoteHeader) into its binary representation typically found in a raw quote.
func (qh *QuoteHeader) Marshal() [48]byte {
	version := make([]byte, 2)
	attestationKeyType := make([]byte, 2)
	teeType := make([]byte, 4)
	qeSVN := make([]byte, 2)
	pceSVN := make([]byte, 2)
	binary.LittleEndian.PutUint16(version, qh.Version)
	binary.LittleEndian.PutUint16(attestationKeyType, qh.AttestationKeyType)
	binary.LittleEndian.PutUint32(teeType, qh.TEEType)
	binary.LittleEndian.PutUint16(qeSVN, qh.QESVN)
	binary.LittleEndian.PutUint16(pceSVN, qh.PCESVN)

	var result [48]byte
	copy(result[0:2], version)
	copy(result[2:4], attestationKeyType)
	copy(result[4:8], teeType)
	copy(result[8:10], qeSVN)
	copy(result[10:12], pceSVN)
	copy(result[12:28], qh.VendorID[:])
	copy(result[28:48], qh.UserData[:])

	return result
}

// Marshal serializes a TDX 1.0 TDReport into its binary representation typically found in a raw quote.
func (qr *TDReport10) Marshal() [584]byte {
	seamAttributes := make([]byte, 8)
	tdAttributes := make([]byte, 8)
	xfam := make([]byte, 8)
	binary.LittleEndian.PutUint64(seamAttributes, qr.SEAMAttributes)
	binary.LittleEndian.PutUint64(tdAttributes, qr.TDAttributes)
	binary.LittleEndian.PutUint64(xfam, qr.XFAM)

	var result [584]byte
	copy(result[0:16], qr.TCBSVN[:])
	copy(result[16:64], qr.MRSEAM[:])
	copy(result[64:112], qr.MRSIGNERSEAM[:])
	copy(result[112:120], seamAttributes)
	copy(result[120:128], tdAttributes)
	copy(result[128:136], xfam)
	copy(result[136:184], qr.MRTD[:])
	copy(result[184:232], qr.MRCONFIG[:])
	copy(result[232:280], qr.MROWNER[:])
	copy(result[280:328], qr.MROWNERCONFIG[:])
	copy(result[328:376], qr.RTMR[:][0][:])
	copy(result[376:424], qr.RTMR[:][1][:])
	copy(result[424:472], qr.RTMR[:][2][:])
	copy(result[472:520], qr.RTMR[:][3][:])
	copy(result[520:584], qr.ReportData[:])

	return result
}

// Marshal serializes a TDX 1.5 TDReport into its binary representation typically found in a raw quote.
func (qr *TDReport15) Marshal() [648]byte {
	base := qr.TDReport10.Marshal()

	var result [648]byte
	copy(result[0:584], base[:])
	copy(result[584:600], qr.TCBSVN2[:])
	copy(result[600:648], qr.MRSERVICETD[:])

	return result
}

// MarshalReportBody serializes a report body to its binary quote representation.
// It fails for a nil body or a body type outside the supported variants.
func MarshalReportBody(body ReportBody) ([]byte, error) {
	switch report := body.(type) {
	case EnclaveReport:
		raw := report.Marshal()
		return raw[:], nil
	case TDReport10:
		raw := report.Marshal()
		return raw[:], nil
	case TDReport15:
		raw := report.Marshal()
		return raw[:], nil
	default:
		return nil, fmt.Errorf("unsupported report body type: %T", body)
	}
}

// SignedData returns the quote bytes covered by the attestation key signature:
// the header, the report body, and for version 5 quotes the body descriptor between them.
func (q *Quote) SignedData() ([]byte, error) {
	body, err := MarshalReportBody(q.Body)
	if err != nil {
		return nil, err
	}
	header := q.Header.Marshal()

	result := make([]byte, 0, len(header)+6+len(body))
	result = append(result, header[:]...)

	if q.Header.Version == QuoteVersion5 {
		var bodyType uint16
		switch q.Body.(type) {
		case EnclaveReport:
			bodyType = BODY_SGX_ENCLAVE_REPORT_TYPE
		case TDReport10:
			bodyType = BODY_TD_REPORT10_TYPE
		case TDReport15:
			bodyType = BODY_TD_REPORT15_TYPE
		}
		descriptor := make([]byte, 6)
		binary.LittleEndian.PutUint16(descriptor[0:2], bodyType)
		binary.LittleEndian.PutUint32(descriptor[2:6], uint32(len(body)))
		result = append(result, descriptor...)
	}

	return append(result, body...), nil
}

// Marshal serializes a parsed quote back to its binary representation.
// Marshaling the result of ParseQuote reproduces the original raw quote byte for byte.
func (q *Quote) Marshal() ([]byte, error) {
	signedData, err := q.SignedData()
	if err != nil {
		return nil, err
	}
	signature := q.Signature.marshal(q.Header.Version)

	result := make([]byte, 0, len(signedData)+4+len(signature))
	result = append(result, signedData...)

	signatureLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(signatureLength, uint32(len(signature)))
	result = append(result, signatureLength...)
	result = append(result, signature...)

	return result, nil
}

// marshal serializes the signature section in the wire layout of the given quote version.
// Version 3 lays the QE report certification data out flat, later versions wrap it
// in a PCK_ID_QE_REPORT_CERTIFICATION_DATA envelope.
func (s *ECDSA256QuoteAuthData) marshal(version uint16) []byte {
	qeReport := s.QEReport.Marshal()

	qeAuthDataSize := make([]byte, 2)
	binary.LittleEndian.PutUint16(qeAuthDataSize, s.QEAuthData.ParsedDataSize)
	certDataType := make([]byte, 2)
	binary.LittleEndian.PutUint16(certDataType, s.CertificationData.Type)
	certDataSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(certDataSize, s.CertificationData.ParsedDataSize)

	var result []byte
	result = append(result, s.Signature[:]...)
	result = append(result, s.PublicKey[:]...)

	if version != QuoteVersion3 {
		qeReportCertDataType := make([]byte, 2)
		qeReportCertDataSize := make([]byte, 4)
		binary.LittleEndian.PutUint16(qeReportCertDataType, PCK_ID_QE_REPORT_CERTIFICATION_DATA)
		binary.LittleEndian.PutUint32(qeReportCertDataSize, uint32(len(qeReport)+64+2+len(s.QEAuthData.Data)+6+len(s.CertificationData.Data)))
		result = append(result, qeReportCertDataType...)
		result = append(result, qeReportCertDataSize...)
	}

	result = append(result, qeReport[:]...)
	result = append(result, s.QEReportSignature[:]...)
	result = append(result, qeAuthDataSize...)
	result = append(result, s.QEAuthData.Data...)
	result = append(result, certDataType...)
	result = append(result, certDataSize...)
	result = append(result, s.CertificationData.Data...)

	return result
}
