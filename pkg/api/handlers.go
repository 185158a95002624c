package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Saiteja21M/studentsvc/pkg/admin"
	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/records"
)

const (
	defaultDailyReportCron = "0 0 9 * * ?"
	defaultMarksDelay      = 10
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 500
)

// ─── Scheduling ─────────────────────────────────────────────────────────────

func (s *Server) scheduleMarks(c *gin.Context) {
	name := strings.TrimSpace(c.Query("studentName"))
	if name == "" {
		c.String(http.StatusBadRequest, "Student name is required")
		return
	}
	delay, ok := intParam(c, "delaySeconds", defaultMarksDelay, 0)
	if !ok {
		return
	}

	job, trigger := records.MarksJobKey(name), records.MarksTriggerKey(name)
	_, err := s.scheduler.Schedule(c.Request.Context(), records.JobCalculateMarks,
		map[string]string{"studentName": name},
		core.OneTime(s.now().Add(time.Duration(delay)*time.Second)),
		admin.JobKey(job.Name, job.Group),
		admin.TriggerKey(trigger.Name, trigger.Group),
	)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, "Scheduled marks calculation for student %s in %d seconds", name, delay)
}

func (s *Server) scheduleDailyReport(c *gin.Context) {
	expr := strings.TrimSpace(c.DefaultQuery("cronExpression", defaultDailyReportCron))
	if expr == "" {
		expr = defaultDailyReportCron
	}

	job, trigger := records.DailyReportJobKey, records.DailyReportTriggerKey
	_, err := s.scheduler.Reschedule(c.Request.Context(), records.JobDailyReport, nil,
		core.Cron(expr),
		admin.JobKey(job.Name, job.Group),
		admin.TriggerKey(trigger.Name, trigger.Group),
	)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, "Scheduled daily report with cron expression: %s", expr)
}

func (s *Server) scheduleSync(c *gin.Context) {
	minutes, ok := intParam(c, "intervalMinutes", 0, 1)
	if !ok {
		return
	}

	job, trigger := records.SyncJobKey, records.SyncTriggerKey
	_, err := s.scheduler.Reschedule(c.Request.Context(), records.JobSyncRecords, nil,
		core.Interval(time.Duration(minutes)*time.Minute, core.RepeatForever, s.now()),
		admin.JobKey(job.Name, job.Group),
		admin.TriggerKey(trigger.Name, trigger.Group),
	)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, "Scheduled student sync every %d minutes", minutes)
}

// ─── Job management ─────────────────────────────────────────────────────────

func (s *Server) cancelJob(c *gin.Context) {
	s.jobAction(c, "cancelled", s.scheduler.DeleteJob)
}

func (s *Server) disableJob(c *gin.Context) {
	s.jobAction(c, "disabled", s.scheduler.PauseJob)
}

func (s *Server) enableJob(c *gin.Context) {
	s.jobAction(c, "enabled", s.scheduler.ResumeJob)
}

func (s *Server) jobAction(c *gin.Context, verb string, act func(ctx context.Context, key core.JobKey) (bool, error)) {
	key, ok := jobKeyParam(c)
	if !ok {
		return
	}
	found, err := act(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		c.String(http.StatusNotFound, "Job not found or could not be %s: %s", verb, key.Name)
		return
	}
	c.String(http.StatusOK, "Successfully %s job: %s in group: %s", verb, key.Name, key.Group)
}

func (s *Server) jobStatus(c *gin.Context) {
	key, ok := jobKeyParam(c)
	if !ok {
		return
	}
	st, err := s.scheduler.JobStatus(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) scheduledJobs(c *gin.Context) {
	groups, err := s.scheduler.ListAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) jobHistory(c *gin.Context) {
	key, ok := jobKeyParam(c)
	if !ok {
		return
	}
	limit, ok := intParam(c, "limit", defaultHistoryLimit, 1)
	if !ok {
		return
	}
	recs, err := s.scheduler.History(c.Request.Context(), key, min(limit, maxHistoryLimit))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// ─── Student records ────────────────────────────────────────────────────────

func (s *Server) saveStudent(c *gin.Context) {
	var st records.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.String(http.StatusBadRequest, "invalid student: %v", err)
		return
	}
	saved, err := s.records.Save(c.Request.Context(), &st)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) studentDetails(c *gin.Context) {
	all, err := s.records.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

// deleteStudent answers with the remaining students, or 304 when nothing
// was deleted.
func (s *Server) deleteStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "id must be a number")
		return
	}
	deleted, err := s.records.Delete(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !deleted {
		c.Status(http.StatusNotModified)
		return
	}
	s.studentDetails(c)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func jobKeyParam(c *gin.Context) (core.JobKey, bool) {
	name := strings.TrimSpace(c.Query("jobName"))
	if name == "" {
		c.String(http.StatusBadRequest, "Job name is required")
		return core.JobKey{}, false
	}
	return core.NewJobKey(name, c.Query("groupName")), true
}

// intParam reads an optional integer query parameter. A missing value
// yields def; anything unparsable or below floor is answered with 400.
func intParam(c *gin.Context, name string, def, floor int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		if def < floor {
			c.String(http.StatusBadRequest, "%s is required", name)
			return 0, false
		}
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < floor {
		c.String(http.StatusBadRequest, "%s must be an integer of at least %d", name, floor)
		return 0, false
	}
	return n, true
}

// fail maps an error to a status code. Store and other unexpected
// failures are logged and hidden behind a generic 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidSchedule), errors.Is(err, records.ErrInvalidStudent):
		c.String(http.StatusBadRequest, "%s", err.Error())
	case errors.Is(err, core.ErrJobNotFound):
		key := core.NewJobKey(c.Query("jobName"), c.Query("groupName"))
		c.String(http.StatusNotFound, "Job not found: %s in group: %s", key.Name, key.Group)
	default:
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.String(http.StatusInternalServerError, "internal error")
	}
}
