package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainIndexRecord = "canon/index/v1"
	DomainDocument    = "canon/document/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IndexRecordID computes the stable id of the index record for a logical identity.
// There is exactly one index record per (kind, scope, primaryKey), so the id is
// derived from that triple and never from mutable record content.
func IndexRecordID(kind, scopeID, primaryKey string) string {
	obj := IRObject{
		"kind":        IRString(kind),
		"scope_id":    IRString(scopeID),
		"primary_key": IRString(primaryKey),
	}

	// Strings only: canonical marshaling cannot fail.
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(fmt.Sprintf("IndexRecordID: %v", err))
	}
	return hashWithDomain(DomainIndexRecord, canonical)
}

// DocumentDigest computes a content hash of a document.
// Null fields are dropped before hashing since canonical JSON forbids them.
func DocumentDigest(doc Document) (string, error) {
	canonical, err := MarshalCanonical(stripNulls(IRObject(doc)))
	if err != nil {
		return "", fmt.Errorf("DocumentDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

func stripNulls(obj IRObject) IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case IRNull, nil:
			continue
		case IRObject:
			out[k] = stripNulls(val)
		default:
			out[k] = v
		}
	}
	return out
}
