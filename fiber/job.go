package fiber

import "unsafe"

// jobDescriptorSizeCeiling is the maximum argument footprint a Job
// Descriptor may carry inline, per spec.md's fixed-size type-erased
// carrier requirement. Go lacks a static_assert, so job.go's init panics
// at process start if descriptor grows past it, the idiom the teacher
// uses for its own sizeof.go cache-line constants.
const jobDescriptorSizeCeiling = 128

// JobDescriptor is the fixed-size, type-erased carrier used when handing
// work across a goroutine boundary without a heap allocation per job: a
// closure reference plus inline scratch space a caller may populate
// before the pointer indirection, for callers that want to avoid an
// extra allocation for small argument sets.
type JobDescriptor struct {
	Fn      func(scratch *[96]byte)
	scratch [96]byte
}

// Run invokes the descriptor's function against its own scratch space.
func (j *JobDescriptor) Run() {
	if j.Fn != nil {
		j.Fn(&j.scratch)
	}
}

// Scratch returns the inline argument buffer for writing before Run.
func (j *JobDescriptor) Scratch() *[96]byte { return &j.scratch }

func init() {
	if unsafe.Sizeof(JobDescriptor{}) > jobDescriptorSizeCeiling {
		panic("fiber: JobDescriptor exceeds its fixed size ceiling")
	}
}
