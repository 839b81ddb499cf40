package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentBody(t *testing.T) {
	c := &Comment{ID: "c1", Content: "hello"}
	assert.Equal(t, LiveBody{Text: "hello"}, c.Body())
	assert.False(t, c.Body().Deleted())
	assert.True(t, c.IsRoot())

	c.Tombstone()
	assert.True(t, c.IsDeleted)
	assert.True(t, c.Body().Deleted())
	assert.Equal(t, DeletedCommentPlaceholder, c.Body().Render())
}

func TestCommentJSON_HidesDeletedContent(t *testing.T) {
	parent := "p1"
	c := &Comment{ID: "c1", ParentID: &parent, Content: "original words", IsDeleted: true}

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "original words")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, DeletedCommentPlaceholder, out["content"])
	assert.Equal(t, "p1", out["parent_id"])
	assert.Equal(t, true, out["is_deleted"])
}

func TestDiscussionTags(t *testing.T) {
	d := &Discussion{}
	assert.Equal(t, []string{}, d.GetTags())

	require.NoError(t, d.SetTags([]string{"archive", "film"}))
	assert.Equal(t, `["archive","film"]`, d.Tags)
	assert.Equal(t, []string{"archive", "film"}, d.GetTags())

	require.NoError(t, d.SetTags(nil))
	assert.Equal(t, "[]", d.Tags)

	d.Tags = "not json"
	assert.Equal(t, []string{}, d.GetTags())
}

func TestProfileJSON(t *testing.T) {
	p := &Profile{UserID: "u1", Theme: ThemeDark}
	require.NoError(t, p.SetInterests([]string{"vhs"}))
	require.NoError(t, p.SetSocialLinks(SocialLinks{Github: "octo"}))

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"interests":["vhs"]`)
	assert.Contains(t, string(b), `"social_links":{"github":"octo"}`)

	var back Profile
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, p.Interests, back.Interests)
	assert.Equal(t, "octo", back.GetSocialLinks().Github)
	assert.Equal(t, ThemeDark, back.Theme)
}

func TestUserRoles(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace", Roles: []Role{{Name: RoleAdmin}, {Name: RoleUser}}}
	assert.Equal(t, "Ada Lovelace", u.FullName())
	assert.Equal(t, []string{RoleAdmin, RoleUser}, u.RoleNames())
	assert.True(t, u.HasRole(RoleAdmin))
	assert.False(t, u.HasRole(RoleModerator))

	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidTargetType(TargetTypeComment))
	assert.False(t, IsValidTargetType("post"))
	assert.True(t, IsValidReportTarget(ReportTargetUser))
	assert.True(t, IsValidReportStatus(ReportStatusDismissed))
	assert.False(t, IsValidReportStatus("open"))
	assert.True(t, IsValidTheme(ThemeSystem))
	assert.False(t, IsValidTheme("neon"))
}
