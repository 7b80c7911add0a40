package rtps

import (
	"slices"
	"time"

	"github.com/liamstask/go-dds/qos"
)

// Sample, view and instance state masks. Within each group a zero value
// selects any state.
const (
	ReadSampleState                uint32 = 1
	NotReadSampleState             uint32 = 2
	NewViewState                   uint32 = 4
	NotNewViewState                uint32 = 8
	AliveInstanceState             uint32 = 16
	NotAliveDisposedInstanceState  uint32 = 32
	NotAliveNoWritersInstanceState uint32 = 64

	AnySampleState   = ReadSampleState | NotReadSampleState
	AnyViewState     = NewViewState | NotNewViewState
	AnyInstanceState = AliveInstanceState | NotAliveDisposedInstanceState | NotAliveNoWritersInstanceState
	AnyState         = AnySampleState | AnyViewState | AnyInstanceState
)

// SampleInfo describes a sample returned by a read or take.
type SampleInfo struct {
	SampleState              uint32
	ViewState                uint32
	InstanceState            uint32
	ValidData                bool
	SourceTimestamp          time.Time
	InstanceHandle           InstanceHandle
	PublicationHandle        InstanceHandle
	DisposedGenerationCount  uint32
	NoWritersGenerationCount uint32
	SampleRank               uint32
	GenerationRank           uint32
	AbsoluteGenerationRank   uint32
}

type readOp int

const (
	opPeek readOp = iota
	opRead
	opTake
)

type rhcSample struct {
	payload      []byte
	valid        bool
	read         bool
	srcTS        time.Time
	pubIID       InstanceHandle
	expiry       time.Time // zero: never
	disposedGen  uint32
	noWritersGen uint32
}

func (smp *rhcSample) stateBit() uint32 {
	if smp.read {
		return ReadSampleState
	}
	return NotReadSampleState
}

type rhcInstance struct {
	iid           InstanceHandle
	keyhash       [16]byte
	samples       []*rhcSample
	state         uint32
	isNew         bool
	disposedGen   uint32
	noWritersGen  uint32
	writers       map[InstanceHandle]bool
	owner         InstanceHandle
	ownerStrength int32
	lastSrcTS     time.Time
	lastAccepted  time.Time
	lastUpdate    time.Time
	stateSince    time.Time
}

func (inst *rhcInstance) viewBit() uint32 {
	if inst.isNew {
		return NewViewState
	}
	return NotNewViewState
}

func (inst *rhcInstance) hasUnread() bool {
	return slices.ContainsFunc(inst.samples, func(smp *rhcSample) bool { return !smp.read })
}

// incomingSample is a change on its way into a reader history cache.
type incomingSample struct {
	kind     changeKind
	iid      InstanceHandle
	keyhash  [16]byte
	payload  []byte
	srcTS    time.Time
	pubIID   InstanceHandle
	strength int32
	lifespan time.Duration
}

type storeResult int

const (
	storeChanged storeResult = iota
	storeUnchanged
	storeFiltered
	storeRejected
)

// rhc is a reader history cache. Instances are kept in creation order.
type rhc struct {
	r         *reader
	instances []*rhcInstance
	byIID     map[InstanceHandle]*rhcInstance
	nsamples  int
}

func newRHC(r *reader) *rhc {
	return &rhc{r: r, byIID: make(map[InstanceHandle]*rhcInstance)}
}

func (h *rhc) qos() *qos.Qos {
	return h.r.qos
}

func (h *rhc) store(in *incomingSample, now time.Time) (storeResult, SampleRejectedReason) {
	q := h.qos()
	inst := h.byIID[in.iid]
	created := false
	if inst == nil {
		if in.kind == changeUnregistered {
			return storeUnchanged, NotRejected
		}
		if limit := q.ResourceLimits().MaxInstances; limit != qos.LengthUnlimited && len(h.instances) >= int(limit) {
			return storeRejected, RejectedByInstancesLimit
		}
		inst = &rhcInstance{
			iid:        in.iid,
			keyhash:    in.keyhash,
			state:      AliveInstanceState,
			isNew:      true,
			writers:    make(map[InstanceHandle]bool),
			lastUpdate: now,
			stateSince: now,
		}
		h.instances = append(h.instances, inst)
		h.byIID[in.iid] = inst
		created = true
	}

	if q.Ownership() == qos.Exclusive && !inst.acceptOwner(in) {
		return storeUnchanged, NotRejected
	}

	if in.kind == changeAlive {
		res, reason := h.storeAlive(inst, in, now)
		if res == storeRejected && created {
			h.remove(inst)
		}
		return res, reason
	}

	changed := false
	inst.lastUpdate = now
	if in.kind == changeDisposed || in.kind == changeDisposedUnregistered {
		inst.writers[in.pubIID] = true
		if inst.state != NotAliveDisposedInstanceState {
			inst.state = NotAliveDisposedInstanceState
			inst.stateSince = now
			h.addInvalid(inst, in, now)
			changed = true
		}
	}
	if in.kind == changeUnregistered || in.kind == changeDisposedUnregistered {
		if h.unregister(inst, in.pubIID, now) {
			changed = true
		}
	}
	if !changed {
		return storeUnchanged, NotRejected
	}
	return storeChanged, NotRejected
}

func (h *rhc) storeAlive(inst *rhcInstance, in *incomingSample, now time.Time) (storeResult, SampleRejectedReason) {
	q := h.qos()
	if q.DestinationOrder() == qos.BySourceTimestamp && in.srcTS.Before(inst.lastSrcTS) {
		return storeUnchanged, NotRejected
	}
	if tbf := q.TimeBasedFilter(); tbf > 0 && !inst.lastAccepted.IsZero() && now.Sub(inst.lastAccepted) < tbf {
		return storeFiltered, NotRejected
	}

	hist, rl := q.History(), q.ResourceLimits()
	replace := hist.Kind == qos.KeepLast && len(inst.samples) >= int(hist.Depth)
	if !replace {
		if rl.MaxSamplesPerInstance != qos.LengthUnlimited && len(inst.samples) >= int(rl.MaxSamplesPerInstance) {
			return storeRejected, RejectedBySamplesPerInstanceLimit
		}
		if rl.MaxSamples != qos.LengthUnlimited && h.nsamples >= int(rl.MaxSamples) {
			return storeRejected, RejectedBySamplesLimit
		}
	} else {
		inst.samples = slices.Delete(inst.samples, 0, 1)
		h.nsamples--
	}

	if inst.state != AliveInstanceState {
		if inst.state == NotAliveDisposedInstanceState {
			inst.disposedGen++
		} else {
			inst.noWritersGen++
		}
		inst.state = AliveInstanceState
		inst.stateSince = now
		inst.isNew = true
	}

	smp := &rhcSample{
		payload:      in.payload,
		valid:        true,
		srcTS:        in.srcTS,
		pubIID:       in.pubIID,
		disposedGen:  inst.disposedGen,
		noWritersGen: inst.noWritersGen,
	}
	if in.lifespan != qos.Infinite && in.lifespan > 0 {
		smp.expiry = deadlineAfter(in.srcTS, in.lifespan)
	}
	inst.samples = append(inst.samples, smp)
	h.nsamples++
	inst.writers[in.pubIID] = true
	if in.srcTS.After(inst.lastSrcTS) {
		inst.lastSrcTS = in.srcTS
	}
	inst.lastAccepted = now
	inst.lastUpdate = now
	return storeChanged, NotRejected
}

// acceptOwner applies exclusive ownership: the strongest live writer owns
// the instance.
func (inst *rhcInstance) acceptOwner(in *incomingSample) bool {
	if inst.owner == 0 || inst.owner == in.pubIID || !inst.writers[inst.owner] || in.strength > inst.ownerStrength {
		inst.owner = in.pubIID
		inst.ownerStrength = in.strength
		return true
	}
	return false
}

// addInvalid records a state change as a sample without data, unless
// unread samples already carry it.
func (h *rhc) addInvalid(inst *rhcInstance, in *incomingSample, now time.Time) {
	if inst.hasUnread() {
		return
	}
	inst.samples = append(inst.samples, &rhcSample{
		srcTS:        in.srcTS,
		pubIID:       in.pubIID,
		disposedGen:  inst.disposedGen,
		noWritersGen: inst.noWritersGen,
	})
	h.nsamples++
}

func (h *rhc) unregister(inst *rhcInstance, pub InstanceHandle, now time.Time) bool {
	if !inst.writers[pub] {
		return false
	}
	delete(inst.writers, pub)
	if inst.owner == pub {
		inst.owner = 0
	}
	if len(inst.writers) > 0 || inst.state != AliveInstanceState {
		return false
	}
	inst.state = NotAliveNoWritersInstanceState
	inst.stateSince = now
	h.addInvalid(inst, &incomingSample{srcTS: now, pubIID: pub}, now)
	return true
}

// writerGone unregisters a writer from every instance it wrote.
func (h *rhc) writerGone(pub InstanceHandle, now time.Time) bool {
	changed := false
	for _, inst := range h.instances {
		if h.unregister(inst, pub, now) {
			changed = true
		}
	}
	return changed
}

func (h *rhc) remove(inst *rhcInstance) {
	h.nsamples -= len(inst.samples)
	delete(h.byIID, inst.iid)
	if i := slices.Index(h.instances, inst); i >= 0 {
		h.instances = slices.Delete(h.instances, i, i+1)
	}
}

func (h *rhc) expire(now time.Time) {
	for _, inst := range h.instances {
		n := len(inst.samples)
		inst.samples = slices.DeleteFunc(inst.samples, func(smp *rhcSample) bool {
			return !smp.expiry.IsZero() && now.After(smp.expiry)
		})
		h.nsamples -= n - len(inst.samples)
	}
}

func (h *rhc) hasUnread() bool {
	return slices.ContainsFunc(h.instances, (*rhcInstance).hasUnread)
}

// collect gathers up to max samples matching mask, from one instance when
// only is set, and applies op to them.
func (h *rhc) collect(op readOp, max int, mask uint32, only InstanceHandle, now time.Time) ([]SampleInfo, [][]byte, int32) {
	h.expire(now)
	insts := h.instances
	if only != 0 {
		inst, ok := h.byIID[only]
		if !ok {
			return nil, nil, RetcodePreconditionNotMet
		}
		insts = []*rhcInstance{inst}
	}
	ss, vs, is := mask&AnySampleState, mask&AnyViewState, mask&AnyInstanceState

	infos := make([]SampleInfo, 0, min(max, h.nsamples))
	var payloads [][]byte
	var emptied []*rhcInstance
	for _, inst := range insts {
		if len(infos) >= max {
			break
		}
		if (vs != 0 && vs&inst.viewBit() == 0) || (is != 0 && is&inst.state == 0) {
			continue
		}
		var picked []int
		for i, smp := range inst.samples {
			if len(infos)+len(picked) >= max {
				break
			}
			if ss != 0 && ss&smp.stateBit() == 0 {
				continue
			}
			picked = append(picked, i)
		}
		if len(picked) == 0 {
			continue
		}

		last := inst.samples[picked[len(picked)-1]]
		mrsic := last.disposedGen + last.noWritersGen
		current := inst.disposedGen + inst.noWritersGen
		for k, i := range picked {
			smp := inst.samples[i]
			gen := smp.disposedGen + smp.noWritersGen
			infos = append(infos, SampleInfo{
				SampleState:              smp.stateBit(),
				ViewState:                inst.viewBit(),
				InstanceState:            inst.state,
				ValidData:                smp.valid,
				SourceTimestamp:          smp.srcTS,
				InstanceHandle:           inst.iid,
				PublicationHandle:        smp.pubIID,
				DisposedGenerationCount:  smp.disposedGen,
				NoWritersGenerationCount: smp.noWritersGen,
				SampleRank:               uint32(len(picked) - 1 - k),
				GenerationRank:           mrsic - gen,
				AbsoluteGenerationRank:   current - gen,
			})
			payloads = append(payloads, smp.payload)
		}

		switch op {
		case opRead:
			for _, i := range picked {
				inst.samples[i].read = true
			}
			inst.isNew = false
		case opTake:
			for k := len(picked) - 1; k >= 0; k-- {
				inst.samples = slices.Delete(inst.samples, picked[k], picked[k]+1)
			}
			h.nsamples -= len(picked)
			inst.isNew = false
			if len(inst.samples) == 0 && len(inst.writers) == 0 && inst.state != AliveInstanceState {
				emptied = append(emptied, inst)
			}
		}
	}
	for _, inst := range emptied {
		h.remove(inst)
	}
	return infos, payloads, RetcodeOK
}

// tick expires samples, purges instances per the reader data lifecycle and
// returns the instances that missed their deadline.
func (h *rhc) tick(now time.Time) []InstanceHandle {
	h.expire(now)
	q := h.qos()
	lc := q.ReaderDataLifecycle()
	var purge []*rhcInstance
	for _, inst := range h.instances {
		switch inst.state {
		case NotAliveNoWritersInstanceState:
			if lc.AutopurgeNoWriterSamplesDelay != qos.Infinite && expired(inst.stateSince, lc.AutopurgeNoWriterSamplesDelay, now) {
				purge = append(purge, inst)
			}
		case NotAliveDisposedInstanceState:
			if lc.AutopurgeDisposedSamplesDelay != qos.Infinite && expired(inst.stateSince, lc.AutopurgeDisposedSamplesDelay, now) {
				purge = append(purge, inst)
			}
		}
	}
	for _, inst := range purge {
		h.remove(inst)
	}

	dl := q.Deadline()
	if dl == qos.Infinite {
		return nil
	}
	var missed []InstanceHandle
	for _, inst := range h.instances {
		if inst.state == AliveInstanceState && expired(inst.lastUpdate, dl, now) {
			inst.lastUpdate = now
			missed = append(missed, inst.iid)
		}
	}
	return missed
}
