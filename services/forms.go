package services

import (
	"sync"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

type FormService interface {
	Create(client models.ClientInfo) *FormController
	Get(id string) (*FormController, error)
	Delete(id string) error
}

type FormServiceImpl struct {
	uploads UploadService
	clock   clock.Clock
	logger  logging.Logger

	mu    sync.RWMutex
	forms map[string]*FormController
}

func NewFormServiceImpl(uploads UploadService, c clock.Clock, l logging.Logger) *FormServiceImpl {
	return &FormServiceImpl{
		uploads: uploads,
		clock:   c,
		logger:  l,
		forms:   make(map[string]*FormController),
	}
}

func (svc *FormServiceImpl) Create(client models.ClientInfo) *FormController {
	if client.UserID == "" {
		client.UserID = NewUserID(svc.clock.Now())
	}
	if client.Timezone == "" {
		client.Timezone = "UTC"
	}

	form := NewFormController(uuid.NewString(), svc.uploads, client, svc.clock, svc.logger)

	svc.mu.Lock()
	svc.forms[form.ID()] = form
	svc.mu.Unlock()

	svc.logger.Debug("form created", "form_id", form.ID(), "user_id", client.UserID)
	return form
}

func (svc *FormServiceImpl) Get(id string) (*FormController, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	form, ok := svc.forms[id]
	if !ok {
		return nil, apperror.ErrFormNotFound
	}
	return form, nil
}

func (svc *FormServiceImpl) Delete(id string) error {
	svc.mu.Lock()
	form, ok := svc.forms[id]
	delete(svc.forms, id)
	svc.mu.Unlock()

	if !ok {
		return apperror.ErrFormNotFound
	}
	form.Close()
	return nil
}

func (svc *FormServiceImpl) Shutdown() {
	svc.mu.Lock()
	forms := svc.forms
	svc.forms = make(map[string]*FormController)
	svc.mu.Unlock()

	for _, form := range forms {
		form.Close()
	}
}
