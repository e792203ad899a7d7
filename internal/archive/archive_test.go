package archive

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid uri",
			uri:        "gs://my-bucket/transactions/abc.json",
			wantBucket: "my-bucket",
			wantObject: "transactions/abc.json",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/transactions/abc.json",
			wantErr: true,
		},
		{
			name:    "no object path",
			uri:     "gs://my-bucket",
			wantErr: true,
		},
		{
			name:    "empty object",
			uri:     "gs://my-bucket/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
