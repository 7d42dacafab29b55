package interpreter

import (
	"fmt"

	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/types"
)

// ToWire converts the serializable part of c into its wire form.
func (c *Context) ToWire() *proto.RemoteInterpreterContext {
	return &proto.RemoteInterpreterContext{
		NoteId:             c.NoteId,
		NoteName:           c.NoteName,
		ParagraphId:        c.ParagraphId,
		ReplName:           c.ReplName,
		ParagraphTitle:     c.ParagraphTitle,
		ParagraphText:      c.ParagraphText,
		AuthenticationInfo: c.AuthenticationInfo.ToJson(),
		Config:             c.ConfigJson(),
		Gui:                c.Gui.ToJson(),
		NoteGui:            c.NoteGui.ToJson(),
		LocalProperties:    c.LocalProperties,
	}
}

// ContextFromWire rebuilds a Context from its wire form.
func ContextFromWire(w *proto.RemoteInterpreterContext) (*Context, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing interpreter context", types.ErrSerialization)
	}

	auth, err := AuthenticationInfoFromJson(w.AuthenticationInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication info: %v", types.ErrSerialization, err)
	}

	gui, err := GUIFromJson(w.Gui)
	if err != nil {
		return nil, fmt.Errorf("%w: gui: %v", types.ErrSerialization, err)
	}

	noteGui, err := GUIFromJson(w.NoteGui)
	if err != nil {
		return nil, fmt.Errorf("%w: note gui: %v", types.ErrSerialization, err)
	}

	c := &Context{
		NoteId:             w.NoteId,
		NoteName:           w.NoteName,
		ParagraphId:        w.ParagraphId,
		ReplName:           w.ReplName,
		ParagraphTitle:     w.ParagraphTitle,
		ParagraphText:      w.ParagraphText,
		AuthenticationInfo: auth,
		Config:             make(map[string]interface{}),
		Gui:                gui,
		NoteGui:            noteGui,
		LocalProperties:    w.LocalProperties,
	}
	if c.LocalProperties == nil {
		c.LocalProperties = make(map[string]string)
	}

	if err = c.ReplaceConfig(w.Config); err != nil {
		return nil, fmt.Errorf("%w: config: %v", types.ErrSerialization, err)
	}
	return c, nil
}

// ResultToWire converts a result, together with the context state it changed, into its wire form.
func ResultToWire(r *Result, c *Context) *proto.RemoteInterpreterResult {
	msgs := make([]*proto.RemoteInterpreterResultMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, &proto.RemoteInterpreterResultMessage{Type: string(m.Type), Data: m.Data})
	}

	w := &proto.RemoteInterpreterResult{
		Code: string(r.Code),
		Msg:  msgs,
	}
	if c != nil {
		w.Config = c.ConfigJson()
		w.Gui = c.Gui.ToJson()
		w.NoteGui = c.NoteGui.ToJson()
	}
	return w
}

// ResultFromWire converts the wire form of a result back into a Result.
// The config and GUI state carried alongside the result are merged separately.
func ResultFromWire(w *proto.RemoteInterpreterResult) *Result {
	result := NewResult(ParseCode(w.Code))
	for _, m := range w.Msg {
		result.Add(ParseType(m.Type), m.Data)
	}
	return result
}

// MergeRemoteState applies the config and GUI state returned by a remote execution to c.
//
// The returned config replaces the local one. For an interpreter with native forms the returned paragraph
// and note GUIs replace the local ones; for simple forms only the paragraph forms and params are merged.
// Any other form type leaves both GUIs alone.
func (c *Context) MergeRemoteState(w *proto.RemoteInterpreterResult, formType FormType) error {
	if err := c.ReplaceConfig(w.Config); err != nil {
		return fmt.Errorf("%w: config: %v", types.ErrSerialization, err)
	}

	switch formType {
	case FormTypeNative:
		gui, err := GUIFromJson(w.Gui)
		if err != nil {
			return fmt.Errorf("%w: gui: %v", types.ErrSerialization, err)
		}
		noteGui, err := GUIFromJson(w.NoteGui)
		if err != nil {
			return fmt.Errorf("%w: note gui: %v", types.ErrSerialization, err)
		}
		if c.Gui == nil {
			c.Gui = NewGUI()
		}
		if c.NoteGui == nil {
			c.NoteGui = NewGUI()
		}
		c.Gui.Replace(gui)
		c.NoteGui.Replace(noteGui)
	case FormTypeSimple:
		gui, err := GUIFromJson(w.Gui)
		if err != nil {
			return fmt.Errorf("%w: gui: %v", types.ErrSerialization, err)
		}
		if c.Gui == nil {
			c.Gui = NewGUI()
		}
		c.Gui.Merge(gui)
	}
	return nil
}
