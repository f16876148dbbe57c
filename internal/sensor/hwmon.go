package sensor

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"github.com/spf13/afero"
)

var (
	deviceDirRe = regexp.MustCompile(`^hwmon[0-9]+$`)

	// One pattern per sensor kind, in the order sensors are listed.
	hwmonKinds = []struct {
		re      *regexp.Regexp
		unit    Unit
		convert func(string) (float64, error)
	}{
		{regexp.MustCompile(`^(temp([0-9]+))_input$`), Celsius, scaled(1000)},
		{regexp.MustCompile(`^(fan([0-9]+))_input$`), RPM, scaled(1)},
		{regexp.MustCompile(`^(pwm([0-9]+))$`), PWM, scaled(1)},
		{regexp.MustCompile(`^(power([0-9]+))_average$`), Watt, scaled(1000000)},
	}
)

// Device is one hwmon chip and the sensors found under it.
type Device struct {
	ID      string
	Name    string
	Dir     string
	Sensors []Sensor
}

// Discover scans root (normally /sys/class/hwmon) for hwmon devices and
// their sensors. Devices without any sensor are skipped.
func Discover(fs afero.Fs, root string) ([]*Device, error) {
	errFactory := errors.New()

	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, errFactory.Wrap(ErrDiscoveryFailed, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if deviceDirRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return trailingNumber(names[i]) < trailingNumber(names[j])
	})

	var devices []*Device
	for _, name := range names {
		dev, err := discoverDevice(fs, path.Join(root, name))
		if err != nil {
			logger.Warn().Err(err).Str("dir", name).Msg("Failed to scan hwmon device")
			continue
		}
		if len(dev.Sensors) == 0 {
			logger.Info().Str("dir", dev.Dir).Msg("Found no sensors")
			continue
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

func discoverDevice(fs afero.Fs, dir string) (*Device, error) {
	base := path.Base(dir)
	dev := &Device{ID: base, Name: base, Dir: dir}

	if chip, err := readTrimmed(fs, path.Join(dir, "name")); err == nil && chip != "" {
		dev.Name += " [" + chip + "]"
		dev.ID += ":" + chip
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	for _, kind := range hwmonKinds {
		type match struct {
			file, measurement string
			index             int
		}
		var found []match
		for _, e := range entries {
			m := kind.re.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			idx, _ := strconv.Atoi(m[2])
			found = append(found, match{file: e.Name(), measurement: m[1], index: idx})
		}
		sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

		for _, f := range found {
			s := &hwmonSensor{
				fs:      fs,
				path:    path.Join(dir, f.file),
				id:      ID(dev.ID + ":" + f.measurement),
				name:    f.measurement,
				unit:    kind.unit,
				convert: kind.convert,
			}
			if label, err := readTrimmed(fs, path.Join(dir, f.measurement+"_label")); err == nil && label != "" {
				s.name = label
			}
			dev.Sensors = append(dev.Sensors, s)
		}
	}

	return dev, nil
}

type hwmonSensor struct {
	fs      afero.Fs
	path    string
	id      ID
	name    string
	unit    Unit
	convert func(string) (float64, error)
}

func (s *hwmonSensor) ID() ID       { return s.id }
func (s *hwmonSensor) Name() string { return s.name }
func (s *hwmonSensor) Unit() Unit   { return s.unit }

func (s *hwmonSensor) Value() (float64, error) {
	errFactory := errors.New()

	raw, err := readTrimmed(s.fs, s.path)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	v, err := s.convert(raw)
	if err != nil {
		return 0, errFactory.WithData(ErrParseFailed, struct {
			Path  string
			Raw   string
			Error string
		}{
			Path:  s.path,
			Raw:   raw,
			Error: err.Error(),
		})
	}

	return v, nil
}

func scaled(divisor float64) func(string) (float64, error) {
	return func(raw string) (float64, error) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, err
		}
		return v / divisor, nil
	}
}

func readTrimmed(fs afero.Fs, p string) (string, error) {
	b, err := afero.ReadFile(fs, p)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func trailingNumber(s string) int {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	n, _ := strconv.Atoi(s[i:])

	return n
}
