// Package console holds the operator console state and the transitions that
// load users, merge avatars and upload a new avatar.
//
// State is a value type. Every transition returns a new State and leaves the
// receiver's slices and maps untouched, so a snapshot handed to a renderer
// stays valid while later transitions run.
package console

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// ErrMissingFields is returned when an upload lacks a user, an image or a token.
var ErrMissingFields = errors.New("missing required upload fields")

// User is a member of the working set.
type User struct {
	ID       json.RawMessage `json:"id"`
	UserName string          `json:"userName"`
}

// AvatarMap maps a username to a data URI of its avatar.
type AvatarMap map[string]string

// FileSelection is the image chosen for upload.
type FileSelection struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsEmpty reports whether no file content is selected.
func (f FileSelection) IsEmpty() bool {
	return len(f.Data) == 0
}

// UploadRequest is an upload that passed the local preconditions.
type UploadRequest struct {
	TargetUsername string
	File           FileSelection
	Token          string
}

// StalePolicy decides what happens to avatars of users that left the working set.
type StalePolicy int

const (
	// RetainRemoved keeps avatar entries of users no longer listed.
	RetainRemoved StalePolicy = iota
	// PruneRemoved drops them when a new user list is applied.
	PruneRemoved
)

// State is the full console state.
type State struct {
	Users        []User
	Avatars      AvatarMap
	Token        string
	SelectedUser string
	File         FileSelection
	Message      string
	Generation   uint64
}

// NewState returns an empty state.
func NewState() State {
	return State{Avatars: AvatarMap{}}
}

// BeginLoad starts a new load cycle.
func (s State) BeginLoad() State {
	s.Generation++
	return s
}

// WithUsers replaces the working set with the users that have a name.
func (s State) WithUsers(users []User, policy StalePolicy) State {
	s.Users = FilterUsers(users)

	if policy == PruneRemoved {
		keep := make(map[string]struct{}, len(s.Users))
		for _, u := range s.Users {
			keep[u.UserName] = struct{}{}
		}
		avatars := make(AvatarMap, len(s.Avatars))
		for name, ref := range s.Avatars {
			if _, ok := keep[name]; ok {
				avatars[name] = ref
			}
		}
		s.Avatars = avatars
	}

	return s
}

// ApplyUsers installs the user list fetched by load cycle generation and
// makes that cycle current. A list from a cycle older than the current one is
// discarded and ok is false.
func (s State) ApplyUsers(generation uint64, users []User, policy StalePolicy) (State, bool) {
	if generation <= s.Generation {
		return s, false
	}

	s = s.WithUsers(users, policy)
	s.Generation = generation
	return s, true
}

// MergeAvatar stores ref under username. With guard set, a merge from a load
// cycle other than the current one is discarded and ok is false.
func (s State) MergeAvatar(generation uint64, username, ref string, guard bool) (State, bool) {
	if guard && generation != s.Generation {
		return s, false
	}

	avatars := maps.Clone(s.Avatars)
	if avatars == nil {
		avatars = AvatarMap{}
	}
	avatars[username] = ref
	s.Avatars = avatars

	return s, true
}

// SetToken replaces the bearer token. The value is not validated.
func (s State) SetToken(token string) State {
	s.Token = token
	return s
}

// SelectUser sets the upload target and clears the status message.
func (s State) SelectUser(username string) State {
	s.SelectedUser = username
	s.Message = ""
	return s
}

// SetFile replaces the selected file and clears the status message.
func (s State) SetFile(file FileSelection) State {
	s.File = file
	s.Message = ""
	return s
}

// SetMessage sets the status message.
func (s State) SetMessage(message string) State {
	s.Message = message
	return s
}

// UploadRequest returns the pending upload or ErrMissingFields.
func (s State) UploadRequest() (UploadRequest, error) {
	if s.SelectedUser == "" || s.File.IsEmpty() || s.Token == "" {
		return UploadRequest{}, ErrMissingFields
	}

	return UploadRequest{
		TargetUsername: s.SelectedUser,
		File:           s.File,
		Token:          s.Token,
	}, nil
}

// Clone returns a deep copy suitable for handing out of the manager.
func (s State) Clone() State {
	s.Users = slices.Clone(s.Users)
	s.Avatars = maps.Clone(s.Avatars)
	s.File.Data = slices.Clone(s.File.Data)
	return s
}

// Avatar returns the data URI for a user, if one was fetched.
func (s State) Avatar(username string) (string, bool) {
	ref, ok := s.Avatars[username]
	return ref, ok
}

// FilterUsers returns the users with a non-empty name, in order.
func FilterUsers(users []User) []User {
	valid := make([]User, 0, len(users))
	for _, u := range users {
		if u.UserName != "" {
			valid = append(valid, u)
		}
	}
	return valid
}

// DataURI builds the displayable reference for an avatar payload.
func DataURI(contentType, imageData string) string {
	return "data:" + contentType + ";base64," + imageData
}
