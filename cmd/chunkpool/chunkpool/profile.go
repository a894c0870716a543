package chunkpool

import (
	pool "github.com/openziti/chunkpool"
	"github.com/sirupsen/logrus"
)

// Profile loads the profile named by --profile, falling back to the baseline profile when none was given.
//
func Profile() (*pool.Profile, error) {
	p := pool.NewBaselineProfile()
	if profilePath != "" {
		var err error
		if p, err = pool.LoadProfile(profilePath); err != nil {
			return nil, err
		}
	}
	if profileDump {
		logrus.Info(p.Dump())
	}
	return p, nil
}
