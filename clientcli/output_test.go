package clientcli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/arroweffect/imgapi/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		_, ok := clientcli.NewFormatter(true, false).(*clientcli.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		hf, ok := clientcli.NewFormatter(false, true).(*clientcli.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	results := []clientcli.UploadResult{
		{LocalPath: "hero.jpg", RemotePath: "images/hero.jpg", ContentType: "image/jpeg", Size: 2048},
		{LocalPath: "broken.jpg", Err: errors.New("upload failed")},
	}

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatUpload(&buf, results))

		out := buf.String()
		assert.Contains(t, out, "Uploaded: images/hero.jpg (2.0 KB, image/jpeg)")
		assert.Contains(t, out, "Error: broken.jpg - upload failed")
	})

	t.Run("quiet keeps errors", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatUpload(&buf, results))

		out := buf.String()
		assert.NotContains(t, out, "Uploaded")
		assert.Contains(t, out, "Error: broken.jpg")
	})
}

func TestHumanFormatter_FormatDeleteAndPurge(t *testing.T) {
	var buf bytes.Buffer
	f := &clientcli.HumanFormatter{}

	require.NoError(t, f.FormatDelete(&buf, []clientcli.DeleteResult{
		{Path: "a.jpg", Deleted: true},
		{Path: "b.jpg", Err: errors.New("gone")},
	}))
	require.NoError(t, f.FormatPurge(&buf, []clientcli.PurgeResult{
		{URL: "https://img.example.com/a.jpg", Purged: true},
	}))

	out := buf.String()
	assert.Contains(t, out, "Deleted: a.jpg")
	assert.Contains(t, out, "Error: b.jpg - gone")
	assert.Contains(t, out, "Purged: https://img.example.com/a.jpg")
}

func TestJSONFormatter_FormatPurge(t *testing.T) {
	var buf bytes.Buffer
	err := (&clientcli.JSONFormatter{}).FormatPurge(&buf, []clientcli.PurgeResult{
		{URL: "https://img.example.com/a.jpg", Purged: true, Detail: json.RawMessage(`{"success":true}`)},
		{URL: "https://img.example.com/b.jpg", Err: errors.New("server error: 500")},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"results":[
		{"url":"https://img.example.com/a.jpg","purged":true,"cloudflare":{"success":true}},
		{"url":"https://img.example.com/b.jpg","purged":false,"error":"server error: 500"}
	]}`, buf.String())
}

func TestJSONFormatter_FormatUploadAndDelete(t *testing.T) {
	f := &clientcli.JSONFormatter{}

	var up bytes.Buffer
	require.NoError(t, f.FormatUpload(&up, []clientcli.UploadResult{
		{LocalPath: "a.png", RemotePath: "a.png", ContentType: "image/png", Size: 3, Message: "ok"},
		{LocalPath: "b.png", RemotePath: "b.png", Err: errors.New("boom")},
	}))
	assert.JSONEq(t, `[
		{"local_path":"a.png","remote_path":"a.png","content_type":"image/png","size_bytes":3,"message":"ok"},
		{"local_path":"b.png","remote_path":"b.png","error":"boom"}
	]`, up.String())

	var del bytes.Buffer
	require.NoError(t, f.FormatDelete(&del, []clientcli.DeleteResult{{Path: "a.png", Deleted: true}}))
	assert.JSONEq(t, `{"results":[{"path":"a.png","deleted":true}]}`, del.String())

	var e bytes.Buffer
	require.NoError(t, f.FormatError(&e, errors.New("bad")))
	assert.JSONEq(t, `{"error":"bad"}`, e.String())
}

func TestFormatProfiles(t *testing.T) {
	profiles := []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:8080", Token: "short"},
		{Name: "prod", Endpoint: "https://img.example.com", Token: "abcd1234efgh5678", Default: true},
	}

	t.Run("human list masks tokens", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileList(&buf, profiles, "prod", false))

		out := buf.String()
		assert.Contains(t, out, "TOKEN")
		assert.Contains(t, out, "* prod")
		assert.Contains(t, out, "abcd...5678")
		assert.Contains(t, out, "********")
		assert.NotContains(t, out, "abcd1234efgh5678")
	})

	t.Run("human show with secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileShow(&buf, profiles[1], true, true))

		out := buf.String()
		assert.Contains(t, out, "prod (default)")
		assert.Contains(t, out, "abcd1234efgh5678")
	})

	t.Run("json list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileList(&buf, profiles, "prod", false))

		assert.JSONEq(t, `{"profiles":[
			{"name":"local","endpoint":"http://localhost:8080","token":"********"},
			{"name":"prod","endpoint":"https://img.example.com","token":"abcd...5678","default":true}
		]}`, buf.String())
	})

	t.Run("json show unset token", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileShow(&buf, clientcli.Profile{Name: "x"}, false, false))

		assert.JSONEq(t, `{"name":"x","endpoint":"","token":"(not set)","default":false}`, buf.String())
	})
}
