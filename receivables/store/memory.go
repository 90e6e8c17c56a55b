// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type datumKey struct {
	ParticipantID receivables.ParticipantID
	InstanceID    receivables.InstanceID
}

type Memory struct {
	mu           sync.RWMutex
	projects     map[receivables.ProjectID]receivables.Project
	fields       map[receivables.FieldID]receivables.FieldDescriptor
	instances    map[receivables.InstanceID]receivables.ReceivableInstance
	participants map[receivables.ParticipantID]receivables.Participant
	data         map[datumKey]receivables.ParticipantDatum
}

func NewMemory() *Memory {
	return &Memory{
		projects:     make(map[receivables.ProjectID]receivables.Project),
		fields:       make(map[receivables.FieldID]receivables.FieldDescriptor),
		instances:    make(map[receivables.InstanceID]receivables.ReceivableInstance),
		participants: make(map[receivables.ParticipantID]receivables.Participant),
		data:         make(map[datumKey]receivables.ParticipantDatum),
	}
}

// ---- Projects ----

func (m *Memory) CreateProject(_ context.Context, p receivables.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id receivables.ProjectID) (receivables.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return receivables.Project{}, receivables.ErrProjectNotFound
	}
	return p, nil
}

// ---- Field descriptors ----

func (m *Memory) CreateField(_ context.Context, fd receivables.FieldDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[fd.ID] = fd
	return nil
}

func (m *Memory) GetField(_ context.Context, id receivables.FieldID) (receivables.FieldDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fd, ok := m.fields[id]
	if !ok {
		return receivables.FieldDescriptor{}, receivables.ErrFieldNotFound
	}
	return fd, nil
}

func (m *Memory) ListFields(_ context.Context, projectID receivables.ProjectID) ([]receivables.FieldDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []receivables.FieldDescriptor
	for _, fd := range m.fields {
		if fd.ProjectID == projectID {
			result = append(result, fd)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ---- Receivable instances ----

func (m *Memory) CreateInstance(_ context.Context, inst receivables.ReceivableInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createInstanceLocked(inst)
}

func (m *Memory) createInstanceLocked(inst receivables.ReceivableInstance) error {
	for _, existing := range m.instances {
		if existing.FieldID == inst.FieldID && existing.Key == inst.Key {
			return receivables.ErrDuplicateOptionKey
		}
	}
	m.instances[inst.ID] = inst
	return nil
}

func (m *Memory) ListInstances(_ context.Context, fieldID receivables.FieldID) ([]receivables.ReceivableInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInstancesLocked(fieldID), nil
}

func (m *Memory) listInstancesLocked(fieldID receivables.FieldID) []receivables.ReceivableInstance {
	var result []receivables.ReceivableInstance
	for _, inst := range m.instances {
		if inst.FieldID == fieldID {
			result = append(result, inst)
		}
	}
	receivables.SortInstances(result)
	return result
}

// ---- Participants ----

func (m *Memory) CreateParticipant(_ context.Context, p receivables.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = p
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, id receivables.ParticipantID) (receivables.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return receivables.Participant{}, receivables.ErrParticipantNotFound
	}
	return p, nil
}

func (m *Memory) ListParticipants(_ context.Context, projectID receivables.ProjectID) ([]receivables.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listParticipantsLocked(projectID), nil
}

func (m *Memory) listParticipantsLocked(projectID receivables.ProjectID) []receivables.Participant {
	var result []receivables.Participant
	for _, p := range m.participants {
		if p.ProjectID == projectID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName != result[j].DisplayName {
			return result[i].DisplayName < result[j].DisplayName
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ---- Participant data ----

func (m *Memory) GetDatum(_ context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) (*receivables.ParticipantDatum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDatumLocked(participantID, instanceID), nil
}

func (m *Memory) getDatumLocked(participantID receivables.ParticipantID, instanceID receivables.InstanceID) *receivables.ParticipantDatum {
	d, ok := m.data[datumKey{participantID, instanceID}]
	if !ok {
		return nil
	}
	copied := d
	return &copied
}

func (m *Memory) ListData(_ context.Context, instanceID receivables.InstanceID) ([]receivables.ParticipantDatum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDataLocked(instanceID), nil
}

func (m *Memory) listDataLocked(instanceID receivables.InstanceID) []receivables.ParticipantDatum {
	var result []receivables.ParticipantDatum
	for _, d := range m.data {
		if d.InstanceID == instanceID {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ParticipantID < result[j].ParticipantID })
	return result
}

func (m *Memory) CreateDatum(_ context.Context, d receivables.ParticipantDatum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createDatumLocked(d)
}

func (m *Memory) createDatumLocked(d receivables.ParticipantDatum) error {
	k := datumKey{d.ParticipantID, d.InstanceID}
	if _, exists := m.data[k]; exists {
		return receivables.ErrDuplicateDatum
	}
	m.data[k] = d
	return nil
}

func (m *Memory) UpdateDatum(_ context.Context, d receivables.ParticipantDatum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDatumLocked(d)
}

func (m *Memory) updateDatumLocked(d receivables.ParticipantDatum) error {
	k := datumKey{d.ParticipantID, d.InstanceID}
	if _, exists := m.data[k]; !exists {
		return receivables.ErrInstanceNotFound
	}
	m.data[k] = d
	return nil
}

func (m *Memory) DeleteDatum(_ context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, datumKey{participantID, instanceID})
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(receivables.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	txStore := &txMemoryView{parent: tm.Memory}

	if err := fn(txStore); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	projects     map[receivables.ProjectID]receivables.Project
	fields       map[receivables.FieldID]receivables.FieldDescriptor
	instances    map[receivables.InstanceID]receivables.ReceivableInstance
	participants map[receivables.ParticipantID]receivables.Participant
	data         map[datumKey]receivables.ParticipantDatum
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		projects:     make(map[receivables.ProjectID]receivables.Project, len(tm.projects)),
		fields:       make(map[receivables.FieldID]receivables.FieldDescriptor, len(tm.fields)),
		instances:    make(map[receivables.InstanceID]receivables.ReceivableInstance, len(tm.instances)),
		participants: make(map[receivables.ParticipantID]receivables.Participant, len(tm.participants)),
		data:         make(map[datumKey]receivables.ParticipantDatum, len(tm.data)),
	}
	for k, v := range tm.projects {
		s.projects[k] = v
	}
	for k, v := range tm.fields {
		s.fields[k] = v
	}
	for k, v := range tm.instances {
		s.instances[k] = v
	}
	for k, v := range tm.participants {
		s.participants[k] = v
	}
	for k, v := range tm.data {
		s.data[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.projects = s.projects
	tm.fields = s.fields
	tm.instances = s.instances
	tm.participants = s.participants
	tm.data = s.data
}

// txMemoryView accesses the parent without re-locking; WithTx holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreateProject(_ context.Context, p receivables.Project) error {
	tv.parent.projects[p.ID] = p
	return nil
}

func (tv *txMemoryView) GetProject(_ context.Context, id receivables.ProjectID) (receivables.Project, error) {
	p, ok := tv.parent.projects[id]
	if !ok {
		return receivables.Project{}, receivables.ErrProjectNotFound
	}
	return p, nil
}

func (tv *txMemoryView) CreateField(_ context.Context, fd receivables.FieldDescriptor) error {
	tv.parent.fields[fd.ID] = fd
	return nil
}

func (tv *txMemoryView) GetField(_ context.Context, id receivables.FieldID) (receivables.FieldDescriptor, error) {
	fd, ok := tv.parent.fields[id]
	if !ok {
		return receivables.FieldDescriptor{}, receivables.ErrFieldNotFound
	}
	return fd, nil
}

func (tv *txMemoryView) ListFields(_ context.Context, projectID receivables.ProjectID) ([]receivables.FieldDescriptor, error) {
	var result []receivables.FieldDescriptor
	for _, fd := range tv.parent.fields {
		if fd.ProjectID == projectID {
			result = append(result, fd)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (tv *txMemoryView) CreateInstance(_ context.Context, inst receivables.ReceivableInstance) error {
	return tv.parent.createInstanceLocked(inst)
}

func (tv *txMemoryView) ListInstances(_ context.Context, fieldID receivables.FieldID) ([]receivables.ReceivableInstance, error) {
	return tv.parent.listInstancesLocked(fieldID), nil
}

func (tv *txMemoryView) CreateParticipant(_ context.Context, p receivables.Participant) error {
	tv.parent.participants[p.ID] = p
	return nil
}

func (tv *txMemoryView) GetParticipant(_ context.Context, id receivables.ParticipantID) (receivables.Participant, error) {
	p, ok := tv.parent.participants[id]
	if !ok {
		return receivables.Participant{}, receivables.ErrParticipantNotFound
	}
	return p, nil
}

func (tv *txMemoryView) ListParticipants(_ context.Context, projectID receivables.ProjectID) ([]receivables.Participant, error) {
	return tv.parent.listParticipantsLocked(projectID), nil
}

func (tv *txMemoryView) GetDatum(_ context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) (*receivables.ParticipantDatum, error) {
	return tv.parent.getDatumLocked(participantID, instanceID), nil
}

func (tv *txMemoryView) ListData(_ context.Context, instanceID receivables.InstanceID) ([]receivables.ParticipantDatum, error) {
	return tv.parent.listDataLocked(instanceID), nil
}

func (tv *txMemoryView) CreateDatum(_ context.Context, d receivables.ParticipantDatum) error {
	return tv.parent.createDatumLocked(d)
}

func (tv *txMemoryView) UpdateDatum(_ context.Context, d receivables.ParticipantDatum) error {
	return tv.parent.updateDatumLocked(d)
}

func (tv *txMemoryView) DeleteDatum(_ context.Context, participantID receivables.ParticipantID, instanceID receivables.InstanceID) error {
	delete(tv.parent.data, datumKey{participantID, instanceID})
	return nil
}
