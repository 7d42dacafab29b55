package resource

import (
	"regexp"
)

// Set is a list of resources, typically collected from several pools.
type Set []*Resource

func (s Set) filter(keep func(r *Resource) bool) Set {
	result := make(Set, 0, len(s))
	for _, r := range s {
		if keep(r) {
			result = append(result, r)
		}
	}
	return result
}

func (s Set) FilterByNoteId(noteId string) Set {
	return s.filter(func(r *Resource) bool { return r.id.NoteId == noteId })
}

func (s Set) FilterByParagraphId(paragraphId string) Set {
	return s.filter(func(r *Resource) bool { return r.id.ParagraphId == paragraphId })
}

func (s Set) FilterByPoolId(poolId string) Set {
	return s.filter(func(r *Resource) bool { return r.id.ResourcePoolId == poolId })
}

// FilterByNameRegex returns the resources whose name matches the given regular expression.
func (s Set) FilterByNameRegex(pattern string) (Set, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return s.filter(func(r *Resource) bool { return re.MatchString(r.id.Name) }), nil
}

// Find returns the first resource with the given note, paragraph and name.
func (s Set) Find(noteId string, paragraphId string, name string) (*Resource, bool) {
	for _, r := range s {
		if r.id.NoteId == noteId && r.id.ParagraphId == paragraphId && r.id.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (s Set) Ids() []Id {
	ids := make([]Id, 0, len(s))
	for _, r := range s {
		ids = append(ids, r.id)
	}
	return ids
}
