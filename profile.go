package chunkpool

import (
	"github.com/openziti/chunkpool/cf"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io/ioutil"
	"time"
)

const profileVersion = 1

type Profile struct {
	ChunkSz          int     `cf:"chunk_size"`
	Capacity         int     `cf:"capacity"`
	PollTimeoutMs    int     `cf:"poll_timeout_ms"`
	DelayMaxMs       float64 `cf:"delay_max_ms"`
	DelaySteepness   float64 `cf:"delay_steepness"`
	DelayMidpointPct float64 `cf:"delay_midpoint_pct"`
	i                Instrument
}

func NewBaselineProfile() *Profile {
	curve := DefaultCurve()
	return &Profile{
		ChunkSz:          10 * 1024 * 1024,
		Capacity:         10,
		PollTimeoutMs:    100,
		DelayMaxMs:       curve.MaxMs,
		DelaySteepness:   curve.Steepness,
		DelayMidpointPct: curve.MidpointPct,
	}
}

// LoadProfile reads a yaml profile from path and applies it over the baseline profile.
//
func LoadProfile(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read profile [%s]", path)
	}
	dataMap := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &dataMap); err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal profile [%s]", path)
	}
	p := NewBaselineProfile()
	if err := p.Load(dataMap); err != nil {
		return nil, errors.Wrapf(err, "unable to load profile [%s]", path)
	}
	return p, nil
}

func (self *Profile) Load(data map[string]interface{}) error {
	data, _ = cf.Normalize(data).(map[string]interface{})
	if v, found := data["profile_version"]; found {
		if i, ok := v.(int); ok {
			if i != profileVersion {
				return errors.Errorf("invalid profile version [%d != %d]", i, profileVersion)
			}
		} else {
			return errors.New("invalid 'profile_version' value")
		}
	} else {
		return errors.New("missing 'profile_version'")
	}
	if err := cf.Load(data, self); err != nil {
		return errors.Wrap(err, "error loading profile")
	}
	if v, found := data["instrument"]; found {
		submap, ok := v.(map[string]interface{})
		if !ok {
			return errors.New("invalid 'instrument' value")
		}
		name, _ := submap["name"].(string)
		i, err := NewInstrument(name, submap)
		if err != nil {
			return errors.Wrap(err, "error creating instrument")
		}
		self.i = i
	}
	return self.Validate()
}

func (self *Profile) Validate() error {
	if self.ChunkSz < 1 {
		return errors.Errorf("invalid chunk_size [%d]", self.ChunkSz)
	}
	if self.Capacity < 1 {
		return errors.Errorf("invalid capacity [%d]", self.Capacity)
	}
	if self.PollTimeoutMs < 0 {
		return errors.Errorf("invalid poll_timeout_ms [%d]", self.PollTimeoutMs)
	}
	if self.DelayMaxMs < 0 {
		return errors.Errorf("invalid delay_max_ms [%0.2f]", self.DelayMaxMs)
	}
	if self.DelaySteepness <= 0 {
		return errors.Errorf("invalid delay_steepness [%0.4f]", self.DelaySteepness)
	}
	return nil
}

func (self *Profile) Curve() Curve {
	return Curve{
		MaxMs:       self.DelayMaxMs,
		Steepness:   self.DelaySteepness,
		MidpointPct: self.DelayMidpointPct,
	}
}

func (self *Profile) PollTimeout() time.Duration {
	return time.Duration(self.PollTimeoutMs) * time.Millisecond
}

func (self *Profile) Instrument() Instrument {
	return self.i
}

func (self *Profile) SetInstrument(i Instrument) {
	self.i = i
}

func (self *Profile) Dump() string {
	return cf.Dump("profile", self)
}
