package token

import "time"

// SetNowForTest overrides the issuer clock so tests can move time
// forward without sleeping.
func (i *Issuer) SetNowForTest(now func() time.Time) { i.now = now }
