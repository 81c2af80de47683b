package metrics

import "errors"

// MultiSink fans out to several sinks. Optional recorder interfaces are
// forwarded only to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink combines the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStep forwards the sample to every sink and joins their errors.
func (m *MultiSink) RecordStep(s StepSample) error {
	var errs []error
	for _, sink := range m.Sinks {
		if err := sink.RecordStep(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordHouseholdCount(id string, n int) error {
	var errs []error
	for _, sink := range m.Sinks {
		if r, ok := sink.(HouseholdCountRecorder); ok {
			if err := r.RecordHouseholdCount(id, n); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordRequest(kind string, ok bool) error {
	var errs []error
	for _, sink := range m.Sinks {
		if r, isRec := sink.(RequestRecorder); isRec {
			if err := r.RecordRequest(kind, ok); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, sink := range m.Sinks {
		if c, ok := sink.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
