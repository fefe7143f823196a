package coclust

// kni.go implements the wire-level conventions of the KNI deployment-stream
// protocol (spec.md §6): consumed only by external scoring tooling, never
// served by this package, so the only pieces grounded here are the record
// framing and error-code encoder a caller needs to talk to it.

import "strings"

// KNIMaxRecordLength is the default maximum record length in bytes
// (spec.md §6: "null-terminated strings of at most 10 000 bytes by
// default").
const KNIMaxRecordLength = 10000

// KNIErrorCode is a KNI deployment-stream error code: zero or positive
// means success (and, for open calls, a handle); a negative value in
// {-1,...,-25} names an error kind (spec.md §6).
type KNIErrorCode int

const (
	KNIOK                    KNIErrorCode = 0
	KNIErrOpenFailed         KNIErrorCode = -1
	KNIErrBadDictionary      KNIErrorCode = -2
	KNIErrBadDataPath        KNIErrorCode = -3
	KNIErrMemoryOverflow     KNIErrorCode = -4
	KNIErrRecordTooLong      KNIErrorCode = -5
	KNIErrFieldCountMismatch KNIErrorCode = -6
	KNIErrUnknown            KNIErrorCode = -25
)

// IsError reports whether c denotes a KNI failure.
func (c KNIErrorCode) IsError() bool {
	return c < 0
}

// EncodeKNIRecord joins fields with sep and appends a record terminator,
// trimming leading/trailing whitespace from each field and truncating
// empty fields to the empty string (spec.md §6: "empty numeric field ⇒
// missing value"). It returns KNIErrRecordTooLong if the encoded record
// would exceed maxLen bytes including the terminator.
func EncodeKNIRecord(fields []string, sep byte, maxLen int, crlf bool) (string, KNIErrorCode) {
	trimmed := make([]string, len(fields))
	for i, f := range fields {
		trimmed[i] = strings.TrimSpace(f)
	}

	terminator := "\n"
	if crlf {
		terminator = "\r\n"
	}

	record := strings.Join(trimmed, string(sep)) + terminator

	if maxLen > 0 && len(record) > maxLen {
		return "", KNIErrRecordTooLong
	}

	return record, KNIOK
}

// DecodeKNIRecord splits a single KNI record on sep, trimming the record
// terminator and each field's leading/trailing whitespace.
func DecodeKNIRecord(record string, sep byte) []string {
	record = strings.TrimRight(record, "\r\n")

	fields := strings.Split(record, string(sep))
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	return fields
}
