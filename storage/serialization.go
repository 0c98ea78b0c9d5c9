// Copyright 2025 CETEC Asistente Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/collazomanuel/cetec-asistente-backend/core"
)

// MUS serializers for every record the Badger backend stores. Timestamps are
// encoded as Unix microseconds; enumerations as strings, so stored data stays
// readable across schema additions.

// MarshalUploadSession serializes an UploadSession to bytes.
func MarshalUploadSession(s *core.UploadSession) []byte {
	buf := make([]byte, UploadSessionMUS.Size(*s))
	UploadSessionMUS.Marshal(*s, buf)
	return buf
}

// UnmarshalUploadSession deserializes an UploadSession from bytes.
func UnmarshalUploadSession(data []byte) (*core.UploadSession, error) {
	s, _, err := UploadSessionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(d *core.Document) []byte {
	buf := make([]byte, DocumentMUS.Size(*d))
	DocumentMUS.Marshal(*d, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d, _, err := DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarshalIngestionJob serializes an IngestionJob to bytes.
func MarshalIngestionJob(j *core.IngestionJob) []byte {
	buf := make([]byte, IngestionJobMUS.Size(*j))
	IngestionJobMUS.Marshal(*j, buf)
	return buf
}

// UnmarshalIngestionJob deserializes an IngestionJob from bytes.
func UnmarshalIngestionJob(data []byte) (*core.IngestionJob, error) {
	j, _, err := IngestionJobMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// MarshalServer serializes an A2AServer to bytes.
func MarshalServer(s *core.A2AServer) []byte {
	buf := make([]byte, ServerMUS.Size(*s))
	ServerMUS.Marshal(*s, buf)
	return buf
}

// UnmarshalServer deserializes an A2AServer from bytes.
func UnmarshalServer(data []byte) (*core.A2AServer, error) {
	s, _, err := ServerMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalPolicy serializes a RoutingPolicy to bytes.
func MarshalPolicy(p *core.RoutingPolicy) []byte {
	buf := make([]byte, PolicyMUS.Size(*p))
	PolicyMUS.Marshal(*p, buf)
	return buf
}

// UnmarshalPolicy deserializes a RoutingPolicy from bytes.
func UnmarshalPolicy(data []byte) (*core.RoutingPolicy, error) {
	p, _, err := PolicyMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarshalConversation serializes a Conversation to bytes.
func MarshalConversation(c *core.Conversation) []byte {
	buf := make([]byte, ConversationMUS.Size(*c))
	ConversationMUS.Marshal(*c, buf)
	return buf
}

// UnmarshalConversation deserializes a Conversation from bytes.
func UnmarshalConversation(data []byte) (*core.Conversation, error) {
	c, _, err := ConversationMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(m *core.Message) []byte {
	buf := make([]byte, MessageMUS.Size(*m))
	MessageMUS.Marshal(*m, buf)
	return buf
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	m, _, err := MessageMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// --- time helpers ---

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UTC().UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UTC().UnixMicro())
}

// --- string slice helpers ---

func marshalStrings(ss []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func unmarshalStrings(bs []byte) (ss []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	for i := 0; i < length; i++ {
		var s string
		var m int
		s, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		ss = append(ss, s)
	}
	return ss, n, nil
}

func sizeStrings(ss []string) (size int) {
	size = varint.Int.Size(len(ss))
	for _, s := range ss {
		size += ord.String.Size(s)
	}
	return size
}

// --- UploadSession ---

type uploadSessionMUS struct{}

// UploadSessionMUS serializes core.UploadSession values.
var UploadSessionMUS = uploadSessionMUS{}

func (uploadSessionMUS) Size(v core.UploadSession) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.SubjectID) +
		ord.String.Size(v.FileName) +
		ord.String.Size(v.ContentType) +
		ord.String.Size(v.ObjectKey) +
		ord.String.Size(v.GrantedURL) +
		sizeTime(v.ExpiresAt) +
		ord.String.Size(string(v.Status)) +
		ord.String.Size(v.DocumentID) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.UpdatedAt)
}

func (uploadSessionMUS) Marshal(v core.UploadSession, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.SubjectID, bs[n:])
	n += ord.String.Marshal(v.FileName, bs[n:])
	n += ord.String.Marshal(v.ContentType, bs[n:])
	n += ord.String.Marshal(v.ObjectKey, bs[n:])
	n += ord.String.Marshal(v.GrantedURL, bs[n:])
	n += marshalTime(v.ExpiresAt, bs[n:])
	n += ord.String.Marshal(string(v.Status), bs[n:])
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (uploadSessionMUS) Unmarshal(bs []byte) (v core.UploadSession, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SubjectID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.FileName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ContentType, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ObjectKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.GrantedURL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ExpiresAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var status string
	if status, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.Status = core.SessionStatus(status)
	if v.DocumentID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- Document ---

type documentMUS struct{}

// DocumentMUS serializes core.Document values.
var DocumentMUS = documentMUS{}

func (documentMUS) Size(v core.Document) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.SubjectID) +
		ord.String.Size(v.SourceUploadID) +
		ord.String.Size(v.FileName) +
		ord.String.Size(v.ObjectKey) +
		varint.Int64.Size(v.Size) +
		ord.String.Size(v.Checksum) +
		ord.String.Size(string(v.Status)) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.UpdatedAt)
}

func (documentMUS) Marshal(v core.Document, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.SubjectID, bs[n:])
	n += ord.String.Marshal(v.SourceUploadID, bs[n:])
	n += ord.String.Marshal(v.FileName, bs[n:])
	n += ord.String.Marshal(v.ObjectKey, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += ord.String.Marshal(v.Checksum, bs[n:])
	n += ord.String.Marshal(string(v.Status), bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (v core.Document, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SubjectID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SourceUploadID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.FileName, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.ObjectKey, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Size, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Checksum, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var status string
	if status, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.Status = core.DocumentStatus(status)
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- IngestionJob ---

type ingestionJobMUS struct{}

// IngestionJobMUS serializes core.IngestionJob values.
var IngestionJobMUS = ingestionJobMUS{}

func (ingestionJobMUS) Size(v core.IngestionJob) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.DocumentID) +
		ord.String.Size(v.SubjectID) +
		ord.String.Size(string(v.State)) +
		varint.Int.Size(v.Attempt) +
		varint.Int.Size(v.Chunks) +
		varint.Int.Size(v.Vectors) +
		ord.String.Size(v.Error) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.UpdatedAt)
}

func (ingestionJobMUS) Marshal(v core.IngestionJob, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += ord.String.Marshal(v.SubjectID, bs[n:])
	n += ord.String.Marshal(string(v.State), bs[n:])
	n += varint.Int.Marshal(v.Attempt, bs[n:])
	n += varint.Int.Marshal(v.Chunks, bs[n:])
	n += varint.Int.Marshal(v.Vectors, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (ingestionJobMUS) Unmarshal(bs []byte) (v core.IngestionJob, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.DocumentID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SubjectID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var state string
	if state, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.State = core.JobState(state)
	if v.Attempt, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Chunks, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Vectors, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Error, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- A2AServer ---

type serverMUS struct{}

// ServerMUS serializes core.A2AServer values.
var ServerMUS = serverMUS{}

func (serverMUS) Size(v core.A2AServer) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Name) +
		ord.String.Size(v.Endpoint) +
		sizeStrings(v.SubjectsServed) +
		ord.String.Size(string(v.Health)) +
		sizeTime(v.LastCheckedAt) +
		sizeTime(v.CreatedAt)
}

func (serverMUS) Marshal(v core.A2AServer, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Endpoint, bs[n:])
	n += marshalStrings(v.SubjectsServed, bs[n:])
	n += ord.String.Marshal(string(v.Health), bs[n:])
	n += marshalTime(v.LastCheckedAt, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (serverMUS) Unmarshal(bs []byte) (v core.A2AServer, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Endpoint, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.SubjectsServed, m, err = unmarshalStrings(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var health string
	if health, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.Health = core.HealthStatus(health)
	if v.LastCheckedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- RoutingPolicy ---

type policyMUS struct{}

// PolicyMUS serializes core.RoutingPolicy values.
var PolicyMUS = policyMUS{}

func (policyMUS) Size(v core.RoutingPolicy) int {
	size := varint.Int.Size(v.Version) + varint.Int.Size(len(v.Rules))
	for _, r := range v.Rules {
		size += ord.String.Size(r.SubjectMatch) +
			ord.String.Size(r.TargetServerID) +
			varint.Int.Size(r.Weight)
	}
	return size + ord.String.Size(v.DefaultServerID) + sizeTime(v.UpdatedAt)
}

func (policyMUS) Marshal(v core.RoutingPolicy, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Version, bs)
	n += varint.Int.Marshal(len(v.Rules), bs[n:])
	for _, r := range v.Rules {
		n += ord.String.Marshal(r.SubjectMatch, bs[n:])
		n += ord.String.Marshal(r.TargetServerID, bs[n:])
		n += varint.Int.Marshal(r.Weight, bs[n:])
	}
	n += ord.String.Marshal(v.DefaultServerID, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (policyMUS) Unmarshal(bs []byte) (v core.RoutingPolicy, n int, err error) {
	var m int
	if v.Version, n, err = varint.Int.Unmarshal(bs); err != nil {
		return v, n, err
	}
	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	for i := 0; i < count; i++ {
		var r core.RoutingRule
		if r.SubjectMatch, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		if r.TargetServerID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		if r.Weight, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		v.Rules = append(v.Rules, r)
	}
	if v.DefaultServerID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- Conversation ---

type conversationMUS struct{}

// ConversationMUS serializes core.Conversation values.
var ConversationMUS = conversationMUS{}

func (conversationMUS) Size(v core.Conversation) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.SubjectID) +
		ord.String.Size(v.Title) +
		sizeTime(v.CreatedAt)
}

func (conversationMUS) Marshal(v core.Conversation, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.SubjectID, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (conversationMUS) Unmarshal(bs []byte) (v core.Conversation, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SubjectID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

// --- Message ---

type messageMUS struct{}

// MessageMUS serializes core.Message values.
var MessageMUS = messageMUS{}

func (messageMUS) Size(v core.Message) int {
	size := ord.String.Size(v.ID) +
		ord.String.Size(v.ConversationID) +
		ord.String.Size(string(v.Role)) +
		ord.String.Size(v.Content) +
		ord.String.Size(v.RoutedTo) +
		ord.String.Size(v.Subject) +
		varint.Int.Size(len(v.Citations))
	for _, c := range v.Citations {
		size += ord.String.Size(c.Title) +
			ord.String.Size(c.URI) +
			raw.Float64.Size(c.Score) +
			ord.String.Size(c.DocumentID)
	}
	return size + sizeTime(v.CreatedAt)
}

func (messageMUS) Marshal(v core.Message, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.ConversationID, bs[n:])
	n += ord.String.Marshal(string(v.Role), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.RoutedTo, bs[n:])
	n += ord.String.Marshal(v.Subject, bs[n:])
	n += varint.Int.Marshal(len(v.Citations), bs[n:])
	for _, c := range v.Citations {
		n += ord.String.Marshal(c.Title, bs[n:])
		n += ord.String.Marshal(c.URI, bs[n:])
		n += raw.Float64.Marshal(c.Score, bs[n:])
		n += ord.String.Marshal(c.DocumentID, bs[n:])
	}
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (messageMUS) Unmarshal(bs []byte) (v core.Message, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.ConversationID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var role string
	if role, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.Role = core.MessageRole(role)
	if v.Content, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.RoutedTo, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Subject, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	for i := 0; i < count; i++ {
		var c core.Citation
		if c.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		if c.URI, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		if c.Score, m, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		if c.DocumentID, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return v, n + m, err
		}
		n += m
		v.Citations = append(v.Citations, c)
	}
	if v.CreatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}
