/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func mockJournal(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	mockDB.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS outcomes")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	j, err := NewSQL(db)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return j, mockDB
}

func TestSQLRecord(t *testing.T) {
	gomega.RegisterTestingT(t)
	j, mockDB := mockJournal(t)

	o := outcomes()[1]
	mockDB.ExpectExec(regexp.QuoteMeta(insertOutcome)).
		WithArgs("asset-1", "Update", "Fiserv", "{Fiserv}", "ENDORSEMENT_DENIED", "ENDORSEMENT_DENIED",
			"endorsement policy failure", o.Time.UnixNano(), int64(5*time.Millisecond)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := j.Record(context.Background(), o)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(mockDB.ExpectationsWereMet()).To(gomega.Succeed())
}

func TestSQLRecordFailure(t *testing.T) {
	gomega.RegisterTestingT(t)
	j, mockDB := mockJournal(t)

	mockDB.ExpectExec(regexp.QuoteMeta(insertOutcome)).WillReturnError(errors.New("disk I/O error"))

	err := j.Record(context.Background(), outcomes()[0])
	gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("failed to record Create of asset-1")))
	gomega.Expect(mockDB.ExpectationsWereMet()).To(gomega.Succeed())
}

func TestSQLEntries(t *testing.T) {
	gomega.RegisterTestingT(t)
	j, mockDB := mockJournal(t)

	rows := mockDB.NewRows([]string{"asset_id", "kind", "actor", "scope", "expected", "code", "reason", "created_at", "duration"}).
		AddRow("asset-1", "Create", "Apple", "discovery", "OK", "OK", "", at.UnixNano(), int64(time.Second)).
		AddRow("asset-1", "Delete", "Apple", "{Apple}", "ENDORSEMENT_DENIED", "OK", "", at.Add(time.Minute).UnixNano(), int64(0))
	mockDB.ExpectQuery(regexp.QuoteMeta(selectOutcomes)).WillReturnRows(rows)

	entries, err := j.Entries(context.Background())
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(entries).To(gomega.HaveLen(2))
	gomega.Expect(entries[0].Time).To(gomega.Equal(at))
	gomega.Expect(entries[0].Duration).To(gomega.Equal(time.Second))
	gomega.Expect(entries[1].Passed()).To(gomega.BeFalse())
	gomega.Expect(mockDB.ExpectationsWereMet()).To(gomega.Succeed())
}

func TestSQLCreateTableFailure(t *testing.T) {
	gomega.RegisterTestingT(t)
	db, mockDB, err := sqlmock.New()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	mockDB.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only database"))

	_, err = NewSQL(db)
	gomega.Expect(err).To(gomega.HaveOccurred())
	gomega.Expect(mockDB.ExpectationsWereMet()).To(gomega.Succeed())
}
