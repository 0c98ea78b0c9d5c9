package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	uploadSessionPrefix   = "uplsess"
	uploadObjectKeyPrefix = "uplobj"
	uploadExpiryPrefix    = "uplexp"
	documentPrefix        = "docrec"
	documentSubjectPrefix = "docsubj"
	jobPrefix             = "ingjob"
	jobActivePrefix       = "ingjobact"
	serverPrefix          = "a2asrv"
	serverEndpointPrefix  = "a2aend"
	policyKey             = "routepolicy"
	conversationPrefix    = "convrec"
	messagePrefix         = "msgrec"
	messageSeenPrefix     = "msgseen"
)

// makeUploadSessionKey generates a key for an upload session by ID.
func makeUploadSessionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", uploadSessionPrefix, id))
}

// makeUploadObjectKeyKey generates an index key from object key to session ID.
func makeUploadObjectKeyKey(objectKey string) []byte {
	return []byte(fmt.Sprintf("%s:%s", uploadObjectKeyPrefix, objectKey))
}

// makeUploadExpiryKey generates a composite key for the expiry index.
// Format: prefix:timestamp:id
func makeUploadExpiryKey(expiresAt time.Time, id string) []byte {
	prefix := uploadExpiryPrefix + ":"
	buf := make([]byte, len(prefix)+8+1+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(expiresAt.UnixMicro()))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], id)
	return buf
}

// makePartialUploadExpiryKey generates a partial key for expiry range scans.
func makePartialUploadExpiryKey(expiresAt time.Time) []byte {
	prefix := uploadExpiryPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(expiresAt.UnixMicro()))
	return buf
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// makeDocumentSubjectKey generates a composite key for the subject index.
// Format: prefix:subjectID:timestamp:id
func makeDocumentSubjectKey(subjectID string, createdAt time.Time, id string) []byte {
	prefix := fmt.Sprintf("%s:%s:", documentSubjectPrefix, subjectID)
	buf := make([]byte, len(prefix)+8+1+len(id))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], id)
	return buf
}

// makePartialDocumentSubjectKey generates a prefix for subject index scans.
func makePartialDocumentSubjectKey(subjectID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentSubjectPrefix, subjectID))
}

// makeJobKey generates a key for an ingestion job by ID.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeJobActiveKey generates the active-job marker key for a document.
// The value is the ID of the document's current non-terminal job.
func makeJobActiveKey(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobActivePrefix, documentID))
}

// makeServerKey generates a key for an A2A server by ID.
func makeServerKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", serverPrefix, id))
}

// makeServerEndpointKey generates an index key from endpoint to server ID.
func makeServerEndpointKey(endpoint string) []byte {
	return []byte(fmt.Sprintf("%s:%s", serverEndpointPrefix, endpoint))
}

// makePolicyKey returns the singleton routing policy key.
func makePolicyKey() []byte {
	return []byte(policyKey)
}

// makeConversationKey generates a key for a conversation by ID.
func makeConversationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", conversationPrefix, id))
}

// makeMessageKey generates a composite key for a conversation message.
// Format: prefix:conversationID:timestamp:id, so an ascending scan over a
// conversation prefix yields chronological order.
func makeMessageKey(conversationID string, createdAt time.Time, id string) []byte {
	prefix := fmt.Sprintf("%s:%s:", messagePrefix, conversationID)
	buf := make([]byte, len(prefix)+8+1+len(id))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], id)
	return buf
}

// makePartialMessageKey generates a prefix for conversation message scans.
func makePartialMessageKey(conversationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", messagePrefix, conversationID))
}

// makeMessageSeenKey generates the dedupe marker key for a message ID.
func makeMessageSeenKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", messageSeenPrefix, id))
}
