package manual

import "github.com/xkilldash9x/pagefinder/internal/browser/dom"

// bannerID marks the on-page selection banner.
const bannerID = "ph-form-selection-msg"

// removeJS tears down the click interceptor, banner and cursor.
const removeJS = `() => {
  const state = window.__pagefinderSelection;
  if (state) {
    document.removeEventListener('click', state.handler, true);
    window.__pagefinderSelection = undefined;
  }
  const banner = document.getElementById('` + bannerID + `');
  if (banner) banner.remove();
  if (document.body) document.body.style.cursor = '';
  return true;
}`

// installJS intercepts clicks in the capturing phase and reports the selected
// element through the binding named by the first argument. The second argument
// is the acknowledgement toast lifetime in milliseconds.
const installJS = `() => {` + dom.UniquePathJS + `
  const binding = %s;
  const toastMs = %d;
  const previous = window.__pagefinderSelection;
  if (previous) document.removeEventListener('click', previous.handler, true);
  const old = document.getElementById('` + bannerID + `');
  if (old) old.remove();

  const bare = ['input', 'select', 'textarea', 'button'];
  const formLike = (el) => el.tagName.toLowerCase() === 'form' ||
    el.tagName.toLowerCase() === 'fieldset' ||
    el.classList.contains('form-group') || el.classList.contains('rjsf');

  const handler = (e) => {
    e.preventDefault();
    e.stopPropagation();
    let target = e.target;
    if (bare.includes(target.tagName.toLowerCase())) {
      for (let p = target.parentElement; p && p !== document.body; p = p.parentElement) {
        if (formLike(p)) {
          target = p;
          break;
        }
      }
    }
    const r = target.getBoundingClientRect();
    const info = {
      element: target.tagName.toLowerCase(),
      classes: typeof target.className === 'string' ? target.className : '',
      id: target.id || '',
      x: r.left + window.scrollX,
      y: r.top + window.scrollY,
      width: r.width,
      height: r.height,
      inputCount: target.querySelectorAll('input, select, textarea').length,
      path: uniquePath(target),
    };
    if (typeof window[binding] === 'function') window[binding](JSON.stringify(info));

    const toast = document.createElement('div');
    Object.assign(toast.style, {
      position: 'fixed', bottom: '20px', left: '50%%', transform: 'translateX(-50%%)',
      backgroundColor: '#00FF85', color: 'black', padding: '8px 16px', borderRadius: '4px',
      zIndex: '10000', fontSize: '14px', fontWeight: 'bold',
    });
    toast.textContent = 'Form selected!';
    document.body.appendChild(toast);
    setTimeout(() => toast.remove(), toastMs);
    return false;
  };

  document.addEventListener('click', handler, true);
  window.__pagefinderSelection = { handler };
  document.body.style.cursor = 'crosshair';

  const banner = document.createElement('div');
  banner.id = '` + bannerID + `';
  Object.assign(banner.style, {
    position: 'fixed', top: '10px', left: '50%%', transform: 'translateX(-50%%)',
    backgroundColor: '#FF00FF', color: 'white', padding: '8px 16px', borderRadius: '4px',
    zIndex: '10000', fontWeight: 'bold',
  });
  banner.textContent = 'Click on form elements to select them';
  document.body.appendChild(banner);
  return true;
}`
