package protocol

import (
	"errors"
	"testing"
)

func TestCheckVersion(t *testing.T) {
	if err := CheckVersion(CurrentVersion); err != nil {
		t.Errorf("CheckVersion(current) = %v, want nil", err)
	}

	for _, v := range []int64{0, -1, CurrentVersion + 1} {
		err := CheckVersion(v)
		var ve *VersionError
		if !errors.As(err, &ve) {
			t.Errorf("CheckVersion(%d) = %v, want VersionError", v, err)
			continue
		}
		if ve.Advertised != v {
			t.Errorf("advertised = %d, want %d", ve.Advertised, v)
		}
	}
}
