package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

func projectRows(now time.Time, estado models.ProjectStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "estudiante_id", "tutor_id", "titulo", "descripcion", "planteamiento", "solucion_problema", "objetivo_general", "objetivos_especificos", "metodologia", "estado", "version", "fecha_creacion", "fecha_envio", "fecha_revision", "fecha_aprobacion", "updated_at"}).
		AddRow("p1", "student-1", "tutor-1", "Riego inteligente", "desc", "", "", "", "", "", string(estado), 1, now, nil, nil, nil, now)
}

func TestProjectFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery("SELECT .+ FROM proyectos WHERE id = \\$1 LIMIT 1").
		WithArgs("p1").
		WillReturnRows(projectRows(time.Now(), models.StatusDraft))

	project, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", project.ID)
	assert.Equal(t, models.StatusDraft, project.Estado)
	require.NotNil(t, project.TutorID)
	assert.Equal(t, "tutor-1", *project.TutorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectListFiltersByEstudiante(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM proyectos WHERE 1=1 AND estudiante_id = $1 ORDER BY fecha_creacion DESC LIMIT 20 OFFSET 0")).
		WithArgs("student-1").
		WillReturnRows(projectRows(time.Now(), models.StatusDraft))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM proyectos WHERE 1=1 AND estudiante_id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	projects, total, err := repo.List(context.Background(), models.ProjectFilter{EstudianteID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec("INSERT INTO proyectos").WillReturnResult(sqlmock.NewResult(1, 1))

	project := &models.Project{EstudianteID: "student-1", Titulo: "Riego inteligente", Descripcion: "desc"}
	require.NoError(t, repo.Create(context.Background(), project))
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, models.StatusDraft, project.Estado)
	assert.Equal(t, 1, project.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectTransitionCommitsAtomically(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE proyectos SET").
		WithArgs("p1", models.StatusCorrections, sqlmock.AnyArg(), models.StatusInReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO observaciones").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notificaciones").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), TransitionParams{
		ProjectID: "p1",
		From:      models.StatusInReview,
		To:        models.StatusCorrections,
		Observation: &models.Observation{
			ProyectoID:     "p1",
			UsuarioID:      "tutor-1",
			Observacion:    "Delimitar el alcance",
			EstadoProyecto: models.StatusCorrections,
		},
		Notifications: []models.Notification{{
			UsuarioID: "student-1",
			Tipo:      models.NotificationProjectReviewed,
			Titulo:    "Actualización de revisión",
			Mensaje:   "correcciones solicitadas",
		}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectTransitionLostUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE proyectos SET").
		WithArgs("p1", models.StatusInReview, sqlmock.AnyArg(), models.StatusSubmitted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		ProjectID: "p1",
		From:      models.StatusSubmitted,
		To:        models.StatusInReview,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT estado, COUNT(*) AS total FROM proyectos GROUP BY estado")).
		WillReturnRows(sqlmock.NewRows([]string{"estado", "total"}).
			AddRow(string(models.StatusDraft), 3).
			AddRow(string(models.StatusApproved), 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM proyectos WHERE tutor_id IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.PorEstado[models.StatusDraft])
	assert.Equal(t, 1, stats.SinTutor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectAssignTutorTransactional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE proyectos SET tutor_id = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("p1", "tutor-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO notificaciones").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AssignTutor(context.Background(), "p1", "tutor-1", &models.Notification{
		UsuarioID: "tutor-1",
		Tipo:      models.NotificationTutorAssigned,
		Titulo:    "Nuevo proyecto asignado",
		Mensaje:   "revisión",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
