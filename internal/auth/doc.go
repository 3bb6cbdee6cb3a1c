// Package auth gates access to appliance views behind a session.
//
// The Gate owns login, logout and the forced password change, and resolves
// every navigation: protected routes need a session, and while the appliance
// still has its factory password every protected route except
// /change-password is redirected there. The Navigator holds the current route
// and tells listeners when it changes.
package auth
