package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/repository"
)

const MaxQuestionLength = 1000

// QuestionService handles the question thread under each post. Readers ask,
// the post's author answers.
type QuestionService struct {
	store  repository.DocumentStore
	admins AdminPolicy
	logger *slog.Logger
}

func NewQuestionService(store repository.DocumentStore, admins AdminPolicy, logger *slog.Logger) *QuestionService {
	return &QuestionService{store: store, admins: admins, logger: logger}
}

func checkQuestionBody(field, body string) error {
	if body == "" {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	return checkLength(field, body, MaxQuestionLength)
}

func (s *QuestionService) Ask(ctx context.Context, uid, collection, postID, body string) (*model.Question, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	if err := requirePostLike(collection); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if err := checkQuestionBody("body", body); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, collection, postID); err != nil {
		return nil, err
	}

	ts := now()
	q := &model.Question{
		PostID:         postID,
		PostCollection: collection,
		AuthorID:       uid,
		Body:           body,
		CreatedAt:      model.Timestamp{Time: ts},
	}
	doc, err := toStoreDocument(q, map[string]time.Time{"createdAt": ts})
	if err != nil {
		return nil, err
	}
	q.ID, err = s.store.Create(ctx, model.CollectionQuestions, "", doc)
	if err != nil {
		return nil, fmt.Errorf("creating question: %w", err)
	}

	s.logger.Info("question asked", slog.String("id", q.ID), slog.String("post", postID))
	return q, nil
}

// Answer sets or replaces the answer. Only the author of the post may answer.
func (s *QuestionService) Answer(ctx context.Context, uid, questionID, answer string) (*model.Question, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if err := checkQuestionBody("answer", answer); err != nil {
		return nil, err
	}

	q, err := s.get(ctx, questionID)
	if err != nil {
		return nil, err
	}
	post, err := s.store.Get(ctx, q.PostCollection, q.PostID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("post", q.PostID)
		}
		return nil, err
	}
	if normalize.ResolveAuthorID(post) != uid {
		return nil, apperror.Forbidden("only the author of the post can answer")
	}

	ts := now()
	err = s.store.Update(ctx, model.CollectionQuestions, questionID, model.Document{
		"answer":     answer,
		"answeredBy": uid,
		"answeredAt": ts,
	})
	if err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}

	q.Answer = answer
	q.AnsweredBy = uid
	q.AnsweredAt = model.Timestamp{Time: ts}
	s.logger.Info("question answered", slog.String("id", questionID))
	return q, nil
}

// ListForPost returns the thread oldest first.
func (s *QuestionService) ListForPost(ctx context.Context, collection, postID string) ([]model.Question, error) {
	if err := requirePostLike(collection); err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, model.CollectionQuestions, repository.Query{
		Where: []repository.Filter{
			repository.Where("postId", postID),
			repository.Where("postCollection", collection),
		},
		OrderBy: "createdAt",
		Limit:   MaxListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}

	questions := make([]model.Question, 0, len(docs))
	for _, doc := range docs {
		var q model.Question
		if err := model.FromDocument(doc, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Delete removes a question. The asker and admins may delete.
func (s *QuestionService) Delete(ctx context.Context, uid, questionID string) error {
	if err := requireUser(uid); err != nil {
		return err
	}
	q, err := s.get(ctx, questionID)
	if err != nil {
		return err
	}
	if q.AuthorID != uid && !s.admins.IsAdmin(uid) {
		return apperror.Forbidden("only the asker can delete this question")
	}
	if err := s.store.Delete(ctx, model.CollectionQuestions, questionID); err != nil {
		return err
	}
	s.logger.Info("question deleted", slog.String("id", questionID), slog.String("by", uid))
	return nil
}

func (s *QuestionService) get(ctx context.Context, id string) (*model.Question, error) {
	doc, err := s.store.Get(ctx, model.CollectionQuestions, id)
	if err != nil {
		return nil, err
	}
	var q model.Question
	if err := model.FromDocument(doc, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
