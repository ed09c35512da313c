package sources

import (
	"testing"

	"leadcrm_backend/internal/leads/domain"
)

func TestExtractFieldsNameResolution(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
		want string
	}{
		{
			name: "full name wins over parts",
			data: map[string]string{
				"full_name":  "Fatima Al-Sayed",
				"first_name": "Fatima",
				"last_name":  "Al-Sayed",
			},
			want: "Fatima Al-Sayed",
		},
		{
			name: "parts combine first then last",
			data: map[string]string{
				"last_name":  "Yilmaz",
				"first_name": "Deniz",
			},
			want: "Deniz Yilmaz",
		},
		{
			name: "first name only",
			data: map[string]string{"first_name": "Deniz"},
			want: "Deniz",
		},
		{
			name: "last name only",
			data: map[string]string{"surname": "Yilmaz"},
			want: "Yilmaz",
		},
		{
			name: "aliased full name wins over parts",
			data: map[string]string{
				"Your Name":  "Omar Farouk",
				"first_name": "Omar",
			},
			want: "Omar Farouk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Repeat to shake out any map-iteration-order dependence.
			for i := 0; i < 20; i++ {
				data := make(map[string]string, len(tt.data))
				for k, v := range tt.data {
					data[k] = v
				}
				lead := extractFields(data, domain.SourceWebhook)
				if lead.FullName != tt.want {
					t.Fatalf("FullName = %q, want %q", lead.FullName, tt.want)
				}
			}
		})
	}
}
