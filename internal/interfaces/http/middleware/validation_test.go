package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryPayload struct {
	Category      string `json:"category" binding:"required,cashdesk_category"`
	PaymentMethod string `json:"payment_method" binding:"required,payment_method"`
	IncidentKind  string `json:"incident_kind" binding:"omitempty,incident_kind"`
	Description   string `json:"description" binding:"max=5"`
}

func TestCashdeskValidators(t *testing.T) {
	require.NoError(t, SetupValidator())

	var details []string
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p entryPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			details = details[:0]
			for _, d := range ValidationDetails(err) {
				details = append(details, d.Field+": "+d.Message)
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(`{"category":"SERVICES","payment_method":"CARD","incident_kind":"shortfall"}`))
	assert.Equal(t, http.StatusOK, post(`{"category":"RENT","payment_method":"DIGITAL_WALLET"}`))

	assert.Equal(t, http.StatusBadRequest, post(`{"category":"LUNCH","payment_method":"CASH"}`))
	assert.Equal(t, []string{"category: Unknown category"}, details)

	assert.Equal(t, http.StatusBadRequest, post(`{"category":"RENT","payment_method":"CHEQUE","description":"too long"}`))
	assert.ElementsMatch(t, []string{
		"payment_method: Unsupported payment method",
		"description: Must be at most 5 characters",
	}, details)

	assert.Equal(t, http.StatusBadRequest, post(`{"category":"RENT","payment_method":"CASH","incident_kind":"theft"}`))
	assert.Equal(t, []string{"incident_kind: Unknown incident kind"}, details)
}

func TestValidationDetails_NonValidationError(t *testing.T) {
	assert.Nil(t, ValidationDetails(assert.AnError))
}
