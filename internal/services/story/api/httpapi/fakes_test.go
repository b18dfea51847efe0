package httpapi

import (
	"context"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

type fakeEngine struct {
	node      graph.Node
	view      progression.View
	result    progression.Result
	outfits   []outfit.Option
	character storage.Character
	err       error

	lastNodeID      int64
	lastCharacterID int64
	lastSubmission  progression.Submission
	lastPassword    bool
	lastOutfitCount int
	lastName        string
}

func (f *fakeEngine) GetNode(_ context.Context, nodeID, characterID int64) (graph.Node, error) {
	f.lastNodeID = nodeID
	f.lastCharacterID = characterID
	return f.node, f.err
}

func (f *fakeEngine) StartNode(context.Context) (graph.Node, error) {
	return f.node, f.err
}

func (f *fakeEngine) GetProgress(_ context.Context, characterID int64) (progression.View, error) {
	f.lastCharacterID = characterID
	return f.view, f.err
}

func (f *fakeEngine) SubmitChoice(_ context.Context, sub progression.Submission) (progression.Result, error) {
	f.lastSubmission = sub
	return f.result, f.err
}

func (f *fakeEngine) SubmitPassword(_ context.Context, sub progression.Submission) (progression.Result, error) {
	f.lastSubmission = sub
	f.lastPassword = true
	return f.result, f.err
}

func (f *fakeEngine) RandomOutfits(_ context.Context, n int) ([]outfit.Option, error) {
	f.lastOutfitCount = n
	return f.outfits, f.err
}

func (f *fakeEngine) CreateCharacter(_ context.Context, name string) (storage.Character, error) {
	f.lastName = name
	return f.character, f.err
}

func (f *fakeEngine) GetCharacter(_ context.Context, characterID int64) (storage.Character, error) {
	f.lastCharacterID = characterID
	return f.character, f.err
}

type fakeProfiles struct {
	profile profile.Profile
	err     error
}

func (f fakeProfiles) Get(context.Context, int64) (profile.Profile, error) {
	return f.profile, f.err
}
