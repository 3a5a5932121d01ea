package apiclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeData(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
		want studentDTO
	}{
		{"keyed", `{"data":{"student":{"id":"1","firstName":"Ada"}}}`, "student", studentDTO{ID: "1", FirstName: "Ada"}},
		{"unkeyed data", `{"success":true,"data":{"id":"2","firstName":"Grace"}}`, "student", studentDTO{ID: "2", FirstName: "Grace"}},
		{"bare body", `{"id":"3","firstName":"Linus"}`, "student", studentDTO{ID: "3", FirstName: "Linus"}},
		{"null keyed falls back", `{"data":{"student":null,"id":"4","firstName":"Ken"}}`, "student", studentDTO{ID: "4", FirstName: "Ken"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got studentDTO
			require.NoError(t, DecodeData([]byte(tt.body), tt.key, &got))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeData_InvalidJSON(t *testing.T) {
	var got studentDTO
	require.ErrorIs(t, DecodeData([]byte(`<html>`), "student", &got), ErrInvalidPayload)
}

func TestDecodeList(t *testing.T) {
	body := `{"success":true,"data":{"students":[{"id":"1"},{"id":"2"}],"pagination":{"page":2,"limit":2,"total":7,"totalPages":4}}}`

	var got []studentDTO
	page, err := DecodeList([]byte(body), "students", &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, Pagination{Page: 2, Limit: 2, Total: 7, TotalPages: 4}, page)
}

func TestDecodeList_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"items", `{"data":{"items":[{"id":"1"}]}}`},
		{"data array", `{"data":[{"id":"1"}]}`},
		{"bare array", `[{"id":"1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []studentDTO
			page, err := DecodeList([]byte(tt.body), "students", &got)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, Pagination{Page: 1, Limit: 1, Total: 1, TotalPages: 1}, page)
		})
	}
}

func TestDecodeList_NoArray(t *testing.T) {
	var got []studentDTO
	_, err := DecodeList([]byte(`{"data":{"student":{"id":"1"}}}`), "students", &got)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseErrorBody(t *testing.T) {
	msg, code, fields := parseErrorBody([]byte(`{"message":"Invalid credentials"}`))
	require.Equal(t, "Invalid credentials", msg)
	require.Empty(t, code)
	require.Nil(t, fields)

	msg, _, fields = parseErrorBody([]byte(`{"error":"Forbidden","errors":[{"path":"grade","message":"too long"}]}`))
	require.Equal(t, "Forbidden", msg)
	require.Equal(t, map[string]string{"grade": "too long"}, fields)

	msg, _, _ = parseErrorBody([]byte(`not json`))
	require.Empty(t, msg)
}

func TestExtract(t *testing.T) {
	body := []byte(`{"data":{"token":"jwt","user":{"id":"u1"}}}`)
	require.Equal(t, "jwt", Extract(body, "data.token"))
	require.Equal(t, "u1", Extract(body, "data.user.id"))
	require.Empty(t, Extract(body, "data.missing"))
}
