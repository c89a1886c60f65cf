package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/absmach/fedavg/pkg/api"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oversizedBody is a JSON object whose participant_id alone exceeds the body limit.
func oversizedBody() io.Reader {
	return io.MultiReader(
		strings.NewReader(`{"participant_id":"`),
		bytes.NewReader(bytes.Repeat([]byte("a"), api.MaxBodySize)),
		strings.NewReader(`","sample_count":10,"round":0}`),
	)
}

func TestDecodersLimitBodySize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc    string
		decoder func(context.Context, *http.Request) (any, error)
	}{
		{desc: "register", decoder: decodeRegisterReq},
		{desc: "update", decoder: decodeUpdateReq},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", oversizedBody())
			req.Header.Set("Content-Type", api.ContentType)

			_, err := tc.decoder(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, apiutil.ErrValidation)

			var tooLarge *http.MaxBytesError
			assert.ErrorAs(t, err, &tooLarge)
		})
	}
}

func TestDecodeRegisterReqWithinLimit(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/participants", strings.NewReader(`{"participant_id":"w1","sample_count":10}`))
	req.Header.Set("Content-Type", api.ContentType)

	got, err := decodeRegisterReq(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, registerReq{ParticipantID: "w1", SampleCount: 10}, got)
}
