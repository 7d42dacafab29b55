package interpreter

import (
	"fmt"
	"strings"
)

// Code is the status code of an InterpreterResult.
type Code string

const (
	CodeSuccess            Code = "SUCCESS"
	CodeIncomplete         Code = "INCOMPLETE"
	CodeError              Code = "ERROR"
	CodeAbort              Code = "ABORT"
	CodeKeepPreviousResult Code = "KEEP_PREVIOUS_RESULT"
)

// ParseCode converts the wire representation of a result code. Unknown codes are reported as CodeError.
func ParseCode(code string) Code {
	switch c := Code(strings.ToUpper(code)); c {
	case CodeSuccess, CodeIncomplete, CodeError, CodeAbort, CodeKeepPreviousResult:
		return c
	default:
		return CodeError
	}
}

// Type is the type of a single output segment.
type Type string

const (
	TypeText    Type = "TEXT"
	TypeHtml    Type = "HTML"
	TypeAngular Type = "ANGULAR"
	TypeTable   Type = "TABLE"
	TypeImg     Type = "IMG"
	TypeSvg     Type = "SVG"
	TypeNull    Type = "NULL"
	TypeNetwork Type = "NETWORK"
)

// ParseType converts the wire representation of a message type. Unknown types are reported as TypeText.
func ParseType(typ string) Type {
	switch t := Type(strings.ToUpper(typ)); t {
	case TypeText, TypeHtml, TypeAngular, TypeTable, TypeImg, TypeSvg, TypeNull, TypeNetwork:
		return t
	default:
		return TypeText
	}
}

// Message is one typed output segment of a Result.
type Message struct {
	Type Type   `json:"type"`
	Data string `json:"data"`
}

func (m Message) String() string {
	return fmt.Sprintf("%%%s %s", strings.ToLower(string(m.Type)), m.Data)
}

// Result is the outcome of interpreting a piece of code: a status code and an ordered list of output segments.
type Result struct {
	Code     Code      `json:"code"`
	Messages []Message `json:"msg"`
}

// NewResult creates a new Result with the given code and, optionally, a single TEXT message.
func NewResult(code Code, msg ...string) *Result {
	result := &Result{Code: code, Messages: make([]Message, 0, 1)}
	for _, m := range msg {
		result.Add(TypeText, m)
	}
	return result
}

// ErrorResult creates a Result with CodeError and a single TEXT message.
func ErrorResult(format string, args ...interface{}) *Result {
	return NewResult(CodeError, fmt.Sprintf(format, args...))
}

// Add appends an output segment to the Result.
func (r *Result) Add(typ Type, data string) *Result {
	r.Messages = append(r.Messages, Message{Type: typ, Data: data})
	return r
}

func (r *Result) Succeeded() bool {
	return r != nil && r.Code == CodeSuccess
}

func (r *Result) String() string {
	var sb strings.Builder
	for i, msg := range r.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(msg.String())
	}
	return sb.String()
}
