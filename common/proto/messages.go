package proto

import (
	"github.com/goccy/go-json"
)

var (
	VOID = &Void{}
)

type Void struct{}

// RemoteInterpreterContext is the wire form of interpreter.Context.
type RemoteInterpreterContext struct {
	NoteId             string            `json:"noteId"`
	NoteName           string            `json:"noteName"`
	ParagraphId        string            `json:"paragraphId"`
	ReplName           string            `json:"replName"`
	ParagraphTitle     string            `json:"paragraphTitle"`
	ParagraphText      string            `json:"paragraphText"`
	AuthenticationInfo string            `json:"authenticationInfo"`
	Config             string            `json:"config"`
	Gui                string            `json:"gui"`
	NoteGui            string            `json:"noteGui"`
	LocalProperties    map[string]string `json:"localProperties"`
}

type RemoteInterpreterResultMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// RemoteInterpreterResult is the wire form of interpreter.Result plus the context state changed by the
// execution.
type RemoteInterpreterResult struct {
	Code    string                            `json:"code"`
	Msg     []*RemoteInterpreterResultMessage `json:"msg"`
	Config  string                            `json:"config"`
	Gui     string                            `json:"gui"`
	NoteGui string                            `json:"noteGui"`
}

type CreateInterpreterRequest struct {
	GroupId    string            `json:"groupId"`
	SessionId  string            `json:"sessionId"`
	ClassName  string            `json:"className"`
	Properties map[string]string `json:"properties"`
	UserName   string            `json:"userName"`
}

// InterpreterRequest addresses one interpreter of a session.
type InterpreterRequest struct {
	SessionId string `json:"sessionId"`
	ClassName string `json:"className"`
}

type InterpretRequest struct {
	SessionId string                    `json:"sessionId"`
	ClassName string                    `json:"className"`
	St        string                    `json:"st"`
	Context   *RemoteInterpreterContext `json:"context"`
}

// ContextRequest addresses the execution of one paragraph by an interpreter.
type ContextRequest struct {
	SessionId string                    `json:"sessionId"`
	ClassName string                    `json:"className"`
	Context   *RemoteInterpreterContext `json:"context"`
}

type FormTypeReply struct {
	FormType string `json:"formType"`
}

type ProgressReply struct {
	Progress int32 `json:"progress"`
}

type CompletionRequest struct {
	SessionId string                    `json:"sessionId"`
	ClassName string                    `json:"className"`
	Buf       string                    `json:"buf"`
	Cursor    int32                     `json:"cursor"`
	Context   *RemoteInterpreterContext `json:"context"`
}

type CompletionCandidate struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Meta  string `json:"meta"`
}

type CompletionReply struct {
	Candidates []*CompletionCandidate `json:"candidates"`
}

type StatusRequest struct {
	SessionId string `json:"sessionId"`
	JobId     string `json:"jobId"`
}

type StatusReply struct {
	Status string `json:"status"`
}

// AngularRegistryPushRequest carries the full serialized registry of a group.
type AngularRegistryPushRequest struct {
	GroupId  string `json:"groupId"`
	Registry string `json:"registry"`
	Origin   string `json:"origin"`
}

// AngularObjectRequest carries one serialized angular object.
type AngularObjectRequest struct {
	GroupId string `json:"groupId"`
	Object  string `json:"object"`
	Origin  string `json:"origin"`
}

type AngularObjectRemoveRequest struct {
	GroupId     string `json:"groupId"`
	Name        string `json:"name"`
	NoteId      string `json:"noteId"`
	ParagraphId string `json:"paragraphId"`
	Origin      string `json:"origin"`
}

type ResourcePoolRequest struct {
	GroupId string `json:"groupId"`
}

// ResourceSetReply carries serialized resources without their values.
type ResourceSetReply struct {
	Resources []string `json:"resources"`
}

type ResourceRequest struct {
	GroupId    string `json:"groupId"`
	ResourceId string `json:"resourceId"`
}

type ResourceReply struct {
	Found bool   `json:"found"`
	Value []byte `json:"value"`
}

type InvokeMethodRequest struct {
	GroupId    string `json:"groupId"`
	Invocation string `json:"invocation"`
}

// InvokeMethodReply carries either the serialized return value, or, if the invocation named a return
// resource, the serialized resource under which the value was stored.
type InvokeMethodReply struct {
	Value    []byte `json:"value,omitempty"`
	Resource []byte `json:"resource,omitempty"`
}

// RegisterInfo is sent by a worker process when it connects to the server.
type RegisterInfo struct {
	GroupId string `json:"groupId"`
	Host    string `json:"host"`
	Pid     int32  `json:"pid"`
}

// RegisterReply assigns the token that identifies the connection of a worker as the origin of the
// changes it sends.
type RegisterReply struct {
	Token         string `json:"token"`
	ExecutionMode string `json:"executionMode"`
}

type UnregisterRequest struct {
	GroupId string `json:"groupId"`
	Token   string `json:"token"`
}

type ShutdownRequest struct {
	Reason string `json:"reason"`
}

func (x *RemoteInterpreterResult) String() string {
	m, err := json.Marshal(x)
	if err != nil {
		return "RemoteInterpreterResult[?]"
	}
	return string(m)
}

func (x *RegisterInfo) PrettyString() string {
	m, err := json.MarshalIndent(x, "", "  ")
	if err != nil {
		panic(err)
	}

	return string(m)
}
