package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	exams     map[uint]*models.Exam
	examSeq   uint
	examRows  []*models.ExamQuestion
	rowSeq    uint
	questions map[uint]*models.Question
	subjects  map[uint]*models.Subject
	results   map[uint]*models.ExamResult
	resultSeq uint
	sessions  map[string]*models.VideoWatchSession
	sessSeq   uint
	roles     map[string]models.UserRole
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		exams:     make(map[uint]*models.Exam),
		questions: make(map[uint]*models.Question),
		subjects:  make(map[uint]*models.Subject),
		results:   make(map[uint]*models.ExamResult),
		sessions:  make(map[string]*models.VideoWatchSession),
		roles:     make(map[string]models.UserRole),
	}
}

func (f *fakeRepository) addSubject(id uint, name string) {
	f.subjects[id] = &models.Subject{ID: id, Name: name}
}

func (f *fakeRepository) addQuestion(q *models.Question) {
	f.questions[q.ID] = q
}

func (f *fakeRepository) Exam() repositories.ExamRepository                 { return &fakeExamRepo{f} }
func (f *fakeRepository) ExamQuestion() repositories.ExamQuestionRepository { return &fakeExamQuestionRepo{f} }
func (f *fakeRepository) Question() repositories.QuestionRepository         { return &fakeQuestionRepo{f} }
func (f *fakeRepository) Subject() repositories.SubjectRepository           { return &fakeSubjectRepo{f} }
func (f *fakeRepository) Result() repositories.ResultRepository             { return &fakeResultRepo{f} }
func (f *fakeRepository) VideoWatch() repositories.VideoWatchRepository     { return &fakeVideoWatchRepo{f} }
func (f *fakeRepository) User() repositories.UserRepository                 { return &fakeUserRepo{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ===== EXAMS =====

type fakeExamRepo struct{ f *fakeRepository }

func (r *fakeExamRepo) Create(_ context.Context, _ *gorm.DB, exam *models.Exam) error {
	r.f.examSeq++
	exam.ID = r.f.examSeq
	exam.CreatedAt = time.Now()
	copied := *exam
	r.f.exams[exam.ID] = &copied
	return nil
}

func (r *fakeExamRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Exam, error) {
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *exam
	return &copied, nil
}

func (r *fakeExamRepo) Update(_ context.Context, _ *gorm.DB, exam *models.Exam) error {
	if _, ok := r.f.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *exam
	r.f.exams[exam.ID] = &copied
	return nil
}

func (r *fakeExamRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	if _, ok := r.f.exams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.f.exams, id)
	return nil
}

func (r *fakeExamRepo) ListWithCounts(_ context.Context, _ *gorm.DB) ([]*repositories.ExamAdminRow, error) {
	rows := make([]*repositories.ExamAdminRow, 0, len(r.f.exams))
	for _, exam := range r.f.exams {
		copied := *exam
		students := make(map[string]bool)
		for _, result := range r.f.results {
			if result.ExamID == exam.ID {
				students[result.StudentID] = true
			}
		}
		var questionCount int64
		for _, row := range r.f.examRows {
			if row.ExamID == exam.ID {
				questionCount++
			}
		}
		rows = append(rows, &repositories.ExamAdminRow{
			Exam:          &copied,
			AttemptCount:  int64(len(students)),
			QuestionCount: questionCount,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Exam.CreatedAt.After(rows[j].Exam.CreatedAt) })
	return rows, nil
}

func (r *fakeExamRepo) ListVisibleToStudents(_ context.Context, _ *gorm.DB) ([]*models.Exam, error) {
	exams := make([]*models.Exam, 0)
	for _, exam := range r.f.exams {
		if exam.Status == models.ExamDraft {
			continue
		}
		copied := *exam
		exams = append(exams, &copied)
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.After(exams[j].CreatedAt) })
	return exams, nil
}

// ===== EXAM QUESTIONS =====

type fakeExamQuestionRepo struct{ f *fakeRepository }

func (r *fakeExamQuestionRepo) AddQuestions(_ context.Context, _ *gorm.DB, examID uint, questionIDs []uint) error {
	for i, qid := range questionIDs {
		r.f.rowSeq++
		r.f.examRows = append(r.f.examRows, &models.ExamQuestion{
			ID:         r.f.rowSeq,
			ExamID:     examID,
			QuestionID: qid,
			Position:   i + 1,
		})
	}
	return nil
}

func (r *fakeExamQuestionRepo) ReplaceQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error {
	if err := r.DeleteByExam(ctx, tx, examID); err != nil {
		return err
	}
	return r.AddQuestions(ctx, tx, examID, questionIDs)
}

func (r *fakeExamQuestionRepo) GetByExamOrdered(_ context.Context, _ *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	rows := make([]*models.ExamQuestion, 0)
	for _, row := range r.f.examRows {
		if row.ExamID != examID {
			continue
		}
		copied := *row
		if q, ok := r.f.questions[row.QuestionID]; ok {
			question := *q
			if subject, ok := r.f.subjects[q.SubjectID]; ok {
				question.Subject = *subject
			}
			copied.Question = question
		}
		rows = append(rows, &copied)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	return rows, nil
}

func (r *fakeExamQuestionRepo) CountByExam(_ context.Context, _ *gorm.DB, examID uint) (int64, error) {
	var count int64
	for _, row := range r.f.examRows {
		if row.ExamID == examID {
			count++
		}
	}
	return count, nil
}

func (r *fakeExamQuestionRepo) DeleteByExam(_ context.Context, _ *gorm.DB, examID uint) error {
	kept := r.f.examRows[:0]
	for _, row := range r.f.examRows {
		if row.ExamID != examID {
			kept = append(kept, row)
		}
	}
	r.f.examRows = kept
	return nil
}

// ===== QUESTIONS =====

type fakeQuestionRepo struct{ f *fakeRepository }

func (r *fakeQuestionRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Question, error) {
	q, ok := r.f.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *q
	if subject, ok := r.f.subjects[q.SubjectID]; ok {
		copied.Subject = *subject
	}
	return &copied, nil
}

func (r *fakeQuestionRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uint) ([]*models.Question, error) {
	questions := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := r.f.questions[id]; ok {
			copied := *q
			questions = append(questions, &copied)
		}
	}
	return questions, nil
}

func (r *fakeQuestionRepo) Update(_ context.Context, _ *gorm.DB, question *models.Question) error {
	if _, ok := r.f.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *question
	r.f.questions[question.ID] = &copied
	return nil
}

// ===== SUBJECTS =====

type fakeSubjectRepo struct{ f *fakeRepository }

func (r *fakeSubjectRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Subject, error) {
	subject, ok := r.f.subjects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *subject
	return &copied, nil
}

func (r *fakeSubjectRepo) List(_ context.Context, _ *gorm.DB) ([]*models.Subject, error) {
	subjects := make([]*models.Subject, 0, len(r.f.subjects))
	for _, subject := range r.f.subjects {
		copied := *subject
		subjects = append(subjects, &copied)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

// ===== RESULTS =====

type fakeResultRepo struct{ f *fakeRepository }

func (r *fakeResultRepo) Create(_ context.Context, _ *gorm.DB, result *models.ExamResult) error {
	for _, existing := range r.f.results {
		if existing.StudentID == result.StudentID && existing.ExamID == result.ExamID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.f.resultSeq++
	result.ID = r.f.resultSeq
	result.CreatedAt = time.Now()
	copied := *result
	r.f.results[result.ID] = &copied
	return nil
}

func (r *fakeResultRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.ExamResult, error) {
	result, ok := r.f.results[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *result
	return &copied, nil
}

func (r *fakeResultRepo) GetByStudentAndExam(_ context.Context, _ *gorm.DB, studentID string, examID uint) (*models.ExamResult, error) {
	for _, result := range r.f.results {
		if result.StudentID == studentID && result.ExamID == examID {
			copied := *result
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeResultRepo) ListByStudent(_ context.Context, _ *gorm.DB, studentID string) ([]*models.ExamResult, error) {
	results := make([]*models.ExamResult, 0)
	for _, result := range r.f.results {
		if result.StudentID != studentID {
			continue
		}
		copied := *result
		if exam, ok := r.f.exams[result.ExamID]; ok {
			copied.Exam = *exam
		}
		results = append(results, &copied)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return results, nil
}

func (r *fakeResultRepo) ListByExam(_ context.Context, _ *gorm.DB, examID uint) ([]*models.ExamResult, error) {
	results := make([]*models.ExamResult, 0)
	for _, result := range r.f.results {
		if result.ExamID == examID {
			copied := *result
			results = append(results, &copied)
		}
	}
	return results, nil
}

func (r *fakeResultRepo) DeleteByExam(_ context.Context, _ *gorm.DB, examID uint) error {
	for id, result := range r.f.results {
		if result.ExamID == examID {
			delete(r.f.results, id)
		}
	}
	return nil
}

// ===== VIDEO WATCH =====

type fakeVideoWatchRepo struct{ f *fakeRepository }

func (r *fakeVideoWatchRepo) Create(_ context.Context, _ *gorm.DB, session *models.VideoWatchSession) error {
	if _, ok := r.f.sessions[session.SessionID]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.f.sessSeq++
	session.ID = r.f.sessSeq
	copied := *session
	r.f.sessions[session.SessionID] = &copied
	return nil
}

func (r *fakeVideoWatchRepo) Update(_ context.Context, _ *gorm.DB, session *models.VideoWatchSession) error {
	if _, ok := r.f.sessions[session.SessionID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *session
	r.f.sessions[session.SessionID] = &copied
	return nil
}

func (r *fakeVideoWatchRepo) GetBySessionID(_ context.Context, _ *gorm.DB, sessionID string) (*models.VideoWatchSession, error) {
	session, ok := r.f.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeVideoWatchRepo) Overview(_ context.Context, _ *gorm.DB) (*repositories.WatchOverviewData, error) {
	data := &repositories.WatchOverviewData{}
	videos := make(map[string]bool)
	students := make(map[string]bool)
	var completionSum float64
	for _, s := range r.f.sessions {
		data.TotalViews += int64(s.WatchCount)
		data.TotalWatchSeconds += s.WatchDurationSeconds
		videos[s.VideoURL] = true
		students[s.StudentID] = true
		completionSum += s.CompletionPercentage
		if s.IsCompleted {
			data.CompletedVideos++
		}
	}
	data.UniqueVideos = int64(len(videos))
	data.EngagedStudents = int64(len(students))
	if len(r.f.sessions) > 0 {
		data.AverageCompletion = completionSum / float64(len(r.f.sessions))
	}
	return data, nil
}

func (r *fakeVideoWatchRepo) rollup(filter func(*models.VideoWatchSession) bool) *repositories.QuestionWatchData {
	data := &repositories.QuestionWatchData{}
	students := make(map[string]bool)
	var completionSum float64
	for _, s := range r.f.sessions {
		if !filter(s) {
			continue
		}
		data.Sessions++
		data.TotalViews += int64(s.WatchCount)
		data.TotalWatchSeconds += s.WatchDurationSeconds
		students[s.StudentID] = true
		completionSum += s.CompletionPercentage
		if s.IsCompleted {
			data.CompletedCount++
		}
	}
	data.DistinctStudents = int64(len(students))
	if data.Sessions > 0 {
		data.AverageCompletion = completionSum / float64(data.Sessions)
	}
	return data
}

func (r *fakeVideoWatchRepo) QuestionRollups(ctx context.Context, tx *gorm.DB) ([]*repositories.QuestionWatchData, error) {
	ids := make(map[uint]bool)
	for _, s := range r.f.sessions {
		ids[s.QuestionID] = true
	}
	rollups := make([]*repositories.QuestionWatchData, 0, len(ids))
	for id := range ids {
		rollup, _ := r.QuestionRollup(ctx, tx, id)
		rollups = append(rollups, rollup)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].QuestionID < rollups[j].QuestionID })
	return rollups, nil
}

func (r *fakeVideoWatchRepo) QuestionRollup(_ context.Context, _ *gorm.DB, questionID uint) (*repositories.QuestionWatchData, error) {
	data := r.rollup(func(s *models.VideoWatchSession) bool { return s.QuestionID == questionID })
	data.QuestionID = questionID
	return data, nil
}

func (r *fakeVideoWatchRepo) StudentRollups(ctx context.Context, tx *gorm.DB) ([]*repositories.StudentWatchData, error) {
	ids := make(map[string]bool)
	for _, s := range r.f.sessions {
		ids[s.StudentID] = true
	}
	rollups := make([]*repositories.StudentWatchData, 0, len(ids))
	for id := range ids {
		rollup, _ := r.StudentRollup(ctx, tx, id)
		rollups = append(rollups, rollup)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].StudentID < rollups[j].StudentID })
	return rollups, nil
}

func (r *fakeVideoWatchRepo) StudentRollup(_ context.Context, _ *gorm.DB, studentID string) (*repositories.StudentWatchData, error) {
	q := r.rollup(func(s *models.VideoWatchSession) bool { return s.StudentID == studentID })
	return &repositories.StudentWatchData{
		StudentID:         studentID,
		Sessions:          q.Sessions,
		TotalViews:        q.TotalViews,
		TotalWatchSeconds: q.TotalWatchSeconds,
		AverageCompletion: q.AverageCompletion,
		CompletedCount:    q.CompletedCount,
	}, nil
}

func (r *fakeVideoWatchRepo) list(filter func(*models.VideoWatchSession) bool) []*models.VideoWatchSession {
	sessions := make([]*models.VideoWatchSession, 0)
	for _, s := range r.f.sessions {
		if filter(s) {
			copied := *s
			sessions = append(sessions, &copied)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return sessions
}

func (r *fakeVideoWatchRepo) ListByQuestion(_ context.Context, _ *gorm.DB, questionID uint) ([]*models.VideoWatchSession, error) {
	return r.list(func(s *models.VideoWatchSession) bool { return s.QuestionID == questionID }), nil
}

func (r *fakeVideoWatchRepo) ListByStudent(_ context.Context, _ *gorm.DB, studentID string) ([]*models.VideoWatchSession, error) {
	return r.list(func(s *models.VideoWatchSession) bool { return s.StudentID == studentID }), nil
}

func (r *fakeVideoWatchRepo) ListAll(_ context.Context, _ *gorm.DB) ([]*models.VideoWatchSession, error) {
	return r.list(func(*models.VideoWatchSession) bool { return true }), nil
}

func truncateBucket(granularity repositories.BucketGranularity, t time.Time) time.Time {
	switch granularity {
	case repositories.BucketYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case repositories.BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case repositories.BucketWeek:
		day := t.AddDate(0, 0, -int((t.Weekday()+6)%7))
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

func (r *fakeVideoWatchRepo) BucketSeries(_ context.Context, _ *gorm.DB, granularity repositories.BucketGranularity, buckets int) ([]*repositories.WatchBucketData, error) {
	grouped := make(map[time.Time]*repositories.WatchBucketData)
	counts := make(map[time.Time]int64)
	students := make(map[time.Time]map[string]bool)
	for _, s := range r.f.sessions {
		key := truncateBucket(granularity, s.StartedAt)
		bucket, ok := grouped[key]
		if !ok {
			bucket = &repositories.WatchBucketData{BucketStart: key}
			grouped[key] = bucket
			students[key] = make(map[string]bool)
		}
		bucket.TotalWatchSeconds += s.WatchDurationSeconds
		bucket.DistinctSessions++
		bucket.AverageCompletion += s.CompletionPercentage
		counts[key]++
		students[key][s.StudentID] = true
	}
	series := make([]*repositories.WatchBucketData, 0, len(grouped))
	for key, bucket := range grouped {
		bucket.AverageCompletion /= float64(counts[key])
		bucket.DistinctStudents = int64(len(students[key]))
		series = append(series, bucket)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].BucketStart.After(series[j].BucketStart) })
	if buckets > 0 && len(series) > buckets {
		series = series[:buckets]
	}
	return series, nil
}

func (r *fakeVideoWatchRepo) sliceData(filter func(*models.VideoWatchSession) bool) *repositories.RetentionSliceData {
	data := &repositories.RetentionSliceData{}
	for _, s := range r.f.sessions {
		if !filter(s) {
			continue
		}
		data.Count++
		started := s.StartedAt
		if data.OldestAt == nil || started.Before(*data.OldestAt) {
			copied := started
			data.OldestAt = &copied
		}
		if data.NewestAt == nil || started.After(*data.NewestAt) {
			copied := started
			data.NewestAt = &copied
		}
	}
	return data
}

func (r *fakeVideoWatchRepo) SliceOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (*repositories.RetentionSliceData, error) {
	return r.sliceData(func(s *models.VideoWatchSession) bool { return s.StartedAt.Before(cutoff) }), nil
}

func (r *fakeVideoWatchRepo) SliceInRange(_ context.Context, _ *gorm.DB, from, to time.Time) (*repositories.RetentionSliceData, error) {
	return r.sliceData(func(s *models.VideoWatchSession) bool {
		return !s.StartedAt.Before(from) && s.StartedAt.Before(to)
	}), nil
}

func (r *fakeVideoWatchRepo) deleteWhere(filter func(*models.VideoWatchSession) bool) int64 {
	var deleted int64
	for id, s := range r.f.sessions {
		if filter(s) {
			delete(r.f.sessions, id)
			deleted++
		}
	}
	return deleted
}

func (r *fakeVideoWatchRepo) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(s *models.VideoWatchSession) bool { return s.StartedAt.Before(cutoff) }), nil
}

func (r *fakeVideoWatchRepo) DeleteInRange(_ context.Context, _ *gorm.DB, from, to time.Time) (int64, error) {
	return r.deleteWhere(func(s *models.VideoWatchSession) bool {
		return !s.StartedAt.Before(from) && s.StartedAt.Before(to)
	}), nil
}

func (r *fakeVideoWatchRepo) CountAll(_ context.Context, _ *gorm.DB) (int64, error) {
	return int64(len(r.f.sessions)), nil
}

// ===== USERS =====

type fakeUserRepo struct{ f *fakeRepository }

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	role, ok := r.f.roles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{ID: id, Role: role}, nil
}

func (r *fakeUserRepo) GetRole(_ context.Context, id string) (models.UserRole, error) {
	role, ok := r.f.roles[id]
	if !ok {
		return models.RoleStudent, nil
	}
	return role, nil
}
