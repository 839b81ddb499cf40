package service

import (
	"context"
	"testing"

	"forumhub/internal/apperr"
	"forumhub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment_NotifiesTheRightPeople(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	owner := f.user("owner")
	alice := f.user("alice")
	bob := f.user("bob")
	d := f.discussion(owner)
	svc := f.commentService(0)

	root, err := svc.CreateComment(ctx, alice, CreateCommentRequest{DiscussionID: d.ID, Content: "hello"})
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, alice.UserID, root.AuthorID)
	require.NotNil(t, root.Author)
	assert.Equal(t, "alice", root.Author.FirstName)

	reply, err := svc.CreateComment(ctx, bob, CreateCommentRequest{DiscussionID: d.ID, ParentID: &root.ID, Content: "hi alice"})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	// replying to yourself and commenting on your own discussion stay silent
	_, err = svc.CreateComment(ctx, alice, CreateCommentRequest{DiscussionID: d.ID, ParentID: &root.ID, Content: "me again"})
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, owner, CreateCommentRequest{DiscussionID: d.ID, Content: "thanks all"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"discussion_comment:" + owner.UserID,
		"reply:" + alice.UserID,
	}, f.notifier.Calls())
}

func TestCreateComment_SanitizesContent(t *testing.T) {
	f := newForum()
	author := f.user("alice")
	d := f.discussion(author)

	c, err := f.commentService(0).CreateComment(context.Background(), author, CreateCommentRequest{
		DiscussionID: d.ID,
		Content:      "  <b>bold</b> move<script>alert(1)</script> ",
	})
	require.NoError(t, err)
	assert.Equal(t, "bold move", c.Content)
}

func TestCreateComment_Rejections(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	mod := f.user("mia", model.RoleModerator)
	d := f.discussion(author)
	locked := f.discussion(author, func(d *model.Discussion) { d.IsLocked = true })
	other := f.discussion(author)
	foreign := f.comment(other, author, "elsewhere", nil)
	svc := f.commentService(0)

	tests := []struct {
		name      string
		requester *Requester
		req       CreateCommentRequest
		kind      apperr.Kind
	}{
		{"anonymous", nil, CreateCommentRequest{DiscussionID: d.ID, Content: "x"}, apperr.KindUnauthorized},
		{"empty after sanitizing", author, CreateCommentRequest{DiscussionID: d.ID, Content: "<script></script>  "}, apperr.KindInvalidArgument},
		{"bad discussion id", author, CreateCommentRequest{DiscussionID: "nope", Content: "x"}, apperr.KindInvalidArgument},
		{"missing discussion", author, CreateCommentRequest{DiscussionID: "5b7f0c56-2c1e-4c43-9a43-0b3b9f1f3c11", Content: "x"}, apperr.KindNotFound},
		{"locked discussion", author, CreateCommentRequest{DiscussionID: locked.ID, Content: "x"}, apperr.KindForbidden},
		{"parent in another discussion", author, CreateCommentRequest{DiscussionID: d.ID, ParentID: &foreign.ID, Content: "x"}, apperr.KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateComment(ctx, tt.requester, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	_, err := svc.CreateComment(ctx, mod, CreateCommentRequest{DiscussionID: locked.ID, Content: "closing note"})
	assert.NoError(t, err)
}

func TestCreateComment_ReplyToTombstone(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	d := f.discussion(author)
	parent := f.comment(d, author, "parent", nil)
	svc := f.commentService(0)
	require.NoError(t, svc.DeleteComment(ctx, author, parent.ID))

	_, err := svc.CreateComment(ctx, author, CreateCommentRequest{DiscussionID: d.ID, ParentID: &parent.ID, Content: "late reply"})
	require.NoError(t, err)

	threads, err := f.assembler(0).GetThreadedComments(ctx, nil, d.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, threads.Comments, 1)
	assert.True(t, threads.Comments[0].IsDeleted)
	assert.Len(t, threads.Comments[0].Replies, 1)
}

func TestUpdateComment(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	stranger := f.user("bob")
	mod := f.user("mia", model.RoleModerator)
	d := f.discussion(author)
	c := f.comment(d, author, "original", nil)
	svc := f.commentService(0)

	_, err := svc.UpdateComment(ctx, stranger, c.ID, UpdateCommentRequest{Content: "hijack"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "   "})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	updated, err := svc.UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "revised"})
	require.NoError(t, err)
	assert.Equal(t, "revised", updated.Content)
	assert.True(t, updated.IsEdited)

	stored, err := f.comments.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised", stored.Content)
	assert.True(t, stored.IsEdited)

	_, err = svc.UpdateComment(ctx, mod, c.ID, UpdateCommentRequest{Content: "moderated"})
	assert.NoError(t, err)

	require.NoError(t, svc.DeleteComment(ctx, author, c.ID))
	_, err = svc.UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "undo"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestUpdateComment_LockedDiscussion(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	d := f.discussion(author)
	c := f.comment(d, author, "original", nil)
	d.IsLocked = true
	require.NoError(t, f.discussions.Update(ctx, d))

	_, err := f.commentService(0).UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "revised"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestDeleteComment(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	stranger := f.user("bob")
	admin := f.user("ada", model.RoleAdmin)
	d := f.discussion(author)
	mine := f.comment(d, author, "mine", nil)
	other := f.comment(d, author, "other", nil)
	svc := f.commentService(0)

	assert.True(t, apperr.Is(svc.DeleteComment(ctx, stranger, mine.ID), apperr.KindForbidden))
	assert.True(t, apperr.Is(svc.DeleteComment(ctx, nil, mine.ID), apperr.KindUnauthorized))
	assert.True(t, apperr.Is(svc.DeleteComment(ctx, author, "5b7f0c56-2c1e-4c43-9a43-0b3b9f1f3c11"), apperr.KindNotFound))

	require.NoError(t, svc.DeleteComment(ctx, author, mine.ID))
	stored, err := f.comments.FindByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assert.Equal(t, model.DeletedCommentPlaceholder, stored.Content)

	// deleting twice is a no-op
	require.NoError(t, svc.DeleteComment(ctx, author, mine.ID))
	require.NoError(t, svc.DeleteComment(ctx, admin, other.ID))

	deletes := 0
	for _, e := range f.broadcaster.Events() {
		if e.event == EventCommentDeleted {
			deletes++
			assert.Equal(t, d.ID, e.room)
		}
	}
	assert.Equal(t, 2, deletes)
}

func TestCommentMutations_Broadcast(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	d := f.discussion(author)
	svc := f.commentService(0)

	c, err := svc.CreateComment(ctx, author, CreateCommentRequest{DiscussionID: d.ID, Content: "hello"})
	require.NoError(t, err)
	_, err = svc.UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "hello again"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteComment(ctx, author, c.ID))

	assert.Equal(t, []broadcastEvent{
		{room: d.ID, event: EventCommentCreated},
		{room: d.ID, event: EventCommentUpdated},
		{room: d.ID, event: EventCommentDeleted},
	}, f.broadcaster.Events())
}

func TestCommentService_WithoutCollaborators(t *testing.T) {
	f := newForum()
	author := f.user("alice")
	owner := f.user("owner")
	d := f.discussion(owner)
	svc := NewCommentService(f.comments, f.discussions, f.reactions, f.users, nil, 0)

	_, err := svc.CreateComment(context.Background(), author, CreateCommentRequest{DiscussionID: d.ID, Content: "quiet"})
	assert.NoError(t, err)
}

func TestFlagComment(t *testing.T) {
	f := newForum()
	ctx := context.Background()
	author := f.user("alice")
	d := f.discussion(author)
	c := f.comment(d, author, "questionable", nil)
	svc := f.commentService(3)

	flaggers := []*Requester{f.user("u1"), f.user("u2"), f.user("u3"), f.user("u4")}

	res, err := svc.FlagComment(ctx, flaggers[0], c.ID, FlagCommentRequest{Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.FlagCount)
	assert.False(t, res.IsFlagged)

	_, err = svc.FlagComment(ctx, flaggers[0], c.ID, FlagCommentRequest{Reason: "spam again"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	count, err := f.reactions.CountByTarget(ctx, model.TargetTypeComment, c.ID, model.ReactionFlag)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.FlagComment(ctx, flaggers[1], c.ID, FlagCommentRequest{Reason: "spam"})
	require.NoError(t, err)
	res, err = svc.FlagComment(ctx, flaggers[2], c.ID, FlagCommentRequest{Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.FlagCount)
	assert.True(t, res.IsFlagged)

	res, err = svc.FlagComment(ctx, flaggers[3], c.ID, FlagCommentRequest{Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, res.IsFlagged)

	stored, err := f.comments.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFlagged)
	assert.Equal(t, []string{"flagged:" + author.UserID}, f.notifier.Calls())
}

// interleavedComments runs before once, between the caller's read and its write.
type interleavedComments struct {
	*fakeCommentRepo
	before func()
}

func (r *interleavedComments) runBefore() {
	if r.before != nil {
		hook := r.before
		r.before = nil
		hook()
	}
}

func (r *interleavedComments) UpdateContent(ctx context.Context, id, content string) error {
	r.runBefore()
	return r.fakeCommentRepo.UpdateContent(ctx, id, content)
}

func (r *interleavedComments) Tombstone(ctx context.Context, id string) error {
	r.runBefore()
	return r.fakeCommentRepo.Tombstone(ctx, id)
}

func TestCommentMutations_KeepConcurrentFlag(t *testing.T) {
	ctx := context.Background()
	flagThrice := func(t *testing.T, f *forum, commentID string) func() {
		return func() {
			flagger := f.commentService(3)
			for _, name := range []string{"u1", "u2", "u3"} {
				_, err := flagger.FlagComment(ctx, f.user(name), commentID, FlagCommentRequest{Reason: "spam"})
				require.NoError(t, err)
			}
		}
	}

	t.Run("edit", func(t *testing.T) {
		f := newForum()
		author := f.user("alice")
		d := f.discussion(author)
		c := f.comment(d, author, "questionable", nil)
		repo := &interleavedComments{fakeCommentRepo: f.comments}
		repo.before = flagThrice(t, f, c.ID)
		editor := NewCommentService(repo, f.discussions, f.reactions, f.users, nil, 3)

		_, err := editor.UpdateComment(ctx, author, c.ID, UpdateCommentRequest{Content: "reworded"})
		require.NoError(t, err)

		stored, err := f.comments.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "reworded", stored.Content)
		assert.True(t, stored.IsEdited)
		assert.True(t, stored.IsFlagged)
	})

	t.Run("delete", func(t *testing.T) {
		f := newForum()
		author := f.user("alice")
		d := f.discussion(author)
		c := f.comment(d, author, "questionable", nil)
		repo := &interleavedComments{fakeCommentRepo: f.comments}
		repo.before = flagThrice(t, f, c.ID)
		deleter := NewCommentService(repo, f.discussions, f.reactions, f.users, nil, 3)

		require.NoError(t, deleter.DeleteComment(ctx, author, c.ID))

		stored, err := f.comments.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsDeleted)
		assert.False(t, stored.IsEdited)
		assert.True(t, stored.IsFlagged)
	})
}

func TestFlagComment_RequiresReason(t *testing.T) {
	f := newForum()
	author := f.user("alice")
	d := f.discussion(author)
	c := f.comment(d, author, "fine", nil)

	_, err := f.commentService(0).FlagComment(context.Background(), f.user("bob"), c.ID, FlagCommentRequest{Reason: " <i></i> "})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.commentService(0).FlagComment(context.Background(), nil, c.ID, FlagCommentRequest{Reason: "spam"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
