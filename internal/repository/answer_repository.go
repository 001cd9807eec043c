// Package repository 提供了数据访问层的实现。
package repository

import (
	"provision-fc-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnswerRepository 定义了问答记录的持久化操作接口。
type AnswerRepository interface {
	Upsert(record *model.AnswerRecord) error
	FindByKey(questionKey string) (*model.AnswerRecord, error)
	FindRecent(limit int) ([]model.AnswerRecord, error)
	FindWithPagination(offset, limit int) ([]model.AnswerRecord, int64, error)
	DeleteByKey(questionKey string) error
}

// answerRepository 是 AnswerRepository 接口的 GORM 实现。
type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository 创建一个新的 AnswerRepository 实例。
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// Upsert 以 question_key 为冲突键整行写入。
// 同一问题重复提交时整条记录被新答案覆盖（last-write-wins），不做读改写。
func (r *answerRepository) Upsert(record *model.AnswerRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_key"}},
		UpdateAll: true,
	}).Create(record).Error
}

// FindByKey 根据行键查找一条问答记录。
func (r *answerRepository) FindByKey(questionKey string) (*model.AnswerRecord, error) {
	var record model.AnswerRecord
	err := r.db.Where("question_key = ?", questionKey).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRecent 按更新时间倒序检索最近的问答记录。
func (r *answerRepository) FindRecent(limit int) ([]model.AnswerRecord, error) {
	var records []model.AnswerRecord
	err := r.db.Order("updated_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// FindWithPagination 分页检索问答记录，返回记录列表与总数。
func (r *answerRepository) FindWithPagination(offset, limit int) ([]model.AnswerRecord, int64, error) {
	var records []model.AnswerRecord
	var total int64

	db := r.db.Model(&model.AnswerRecord{})

	// 首先计算总记录数
	err := db.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// 然后根据偏移量和限制获取当前页的数据
	err = db.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// DeleteByKey 根据行键删除一条问答记录。
func (r *answerRepository) DeleteByKey(questionKey string) error {
	return r.db.Where("question_key = ?", questionKey).Delete(&model.AnswerRecord{}).Error
}
